// Package config provides configuration types for the scanner.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Common errors.
var (
	ErrInvalidListen = errors.New("listen address is required")
	ErrInvalidLevel  = errors.New("invalid log level")
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VELDSCAN_"

// Config holds all application configuration.
type Config struct {
	// HTTP settings
	Headers           map[string]string `yaml:"headers"`
	UserAgent         string            `yaml:"user_agent"`
	FetchTimeout      time.Duration     `yaml:"fetch_timeout"` // per individual fetch
	MaxRetries        int               `yaml:"max_retries"`
	RequestsPerSecond float64           `yaml:"requests_per_second"` // 0 = unlimited
	MaxBodyBytes      int64             `yaml:"max_body_bytes"`

	// Parsing
	ProbeAttempts       int           `yaml:"probe_attempts"`
	ContentCacheTTL     time.Duration `yaml:"content_cache_ttl"`
	InspectInitSegments bool          `yaml:"inspect_init_segments"`

	// Batch scanning
	Workers int `yaml:"workers"`

	// UI/Logging
	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`

	// Inspection API
	Listen string `yaml:"listen"`
}

// Default configuration values.
const (
	DefaultFetchTimeout    = 10 * time.Second
	DefaultMaxRetries      = 2
	DefaultProbeAttempts   = 3
	DefaultContentCacheTTL = 60 * time.Second
	DefaultMaxBodyBytes    = 8 << 20
	DefaultWorkers         = 4
	DefaultLogLevel        = "info"
	DefaultListen          = "127.0.0.1:8089"
	DefaultUserAgent       = "veldscan/1.0"

	MaxRetriesLimit = 10
	MaxWorkers      = 64
	MinWorkers      = 1
)

// New returns a Config with sensible defaults.
func New() *Config {
	return &Config{
		Headers:         make(map[string]string),
		UserAgent:       DefaultUserAgent,
		FetchTimeout:    DefaultFetchTimeout,
		MaxRetries:      DefaultMaxRetries,
		MaxBodyBytes:    DefaultMaxBodyBytes,
		ProbeAttempts:   DefaultProbeAttempts,
		ContentCacheTTL: DefaultContentCacheTTL,
		Workers:         DefaultWorkers,
		LogLevel:        DefaultLogLevel,
		Listen:          DefaultListen,
	}
}

// Clone returns a copy that shares no maps with c.
func (c *Config) Clone() *Config {
	out := *c
	out.Headers = make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		out.Headers[k] = v
	}
	return &out
}

// Load builds a Config from defaults, the optional YAML file at path and
// VELDSCAN_* environment variables, in that order.
func Load(path string) (*Config, error) {
	cfg := New()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid and normalizes values.
func (c *Config) Validate() error {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}

	// Clamp retries and workers to valid range
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.MaxRetries > MaxRetriesLimit {
		c.MaxRetries = MaxRetriesLimit
	}
	if c.Workers < MinWorkers {
		c.Workers = MinWorkers
	}
	if c.Workers > MaxWorkers {
		c.Workers = MaxWorkers
	}

	if c.ProbeAttempts <= 0 {
		c.ProbeAttempts = DefaultProbeAttempts
	}
	if c.ContentCacheTTL <= 0 {
		c.ContentCacheTTL = DefaultContentCacheTTL
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.RequestsPerSecond < 0 {
		c.RequestsPerSecond = 0
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "":
		c.LogLevel = DefaultLogLevel
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLevel, c.LogLevel)
	}

	if strings.TrimSpace(c.Listen) == "" {
		return ErrInvalidListen
	}

	// Initialize headers map if nil
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}

	return nil
}

// applyEnv overrides fields from VELDSCAN_* variables. Malformed values are errors.
func (c *Config) applyEnv() error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	str("USER_AGENT", &c.UserAgent)
	dur("FETCH_TIMEOUT", &c.FetchTimeout)
	integer("MAX_RETRIES", &c.MaxRetries)
	integer("PROBE_ATTEMPTS", &c.ProbeAttempts)
	dur("CONTENT_CACHE_TTL", &c.ContentCacheTTL)
	boolean("INSPECT_INIT_SEGMENTS", &c.InspectInitSegments)
	integer("WORKERS", &c.Workers)
	str("LOG_LEVEL", &c.LogLevel)
	boolean("LOG_PRETTY", &c.LogPretty)
	str("LISTEN", &c.Listen)

	if v, ok := os.LookupEnv(EnvPrefix + "REQUESTS_PER_SECOND"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREQUESTS_PER_SECOND: %w", EnvPrefix, err))
		} else {
			c.RequestsPerSecond = f
		}
	}
	if v, ok := os.LookupEnv(EnvPrefix + "MAX_BODY_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_BODY_BYTES: %w", EnvPrefix, err))
		} else {
			c.MaxBodyBytes = n
		}
	}

	return errors.Join(errs...)
}

// ParseHeader splits a "Name: value" header flag.
func ParseHeader(s string) (name, value string, err error) {
	name, value, ok := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid header %q, want \"Name: value\"", s)
	}
	return name, strings.TrimSpace(value), nil
}
