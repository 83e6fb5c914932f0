// Package veldscan parses HLS and DASH manifests into a normalized
// description of their renditions, with duration, live and encryption
// metadata probed from the renditions themselves.
//
// Basic usage:
//
//	s, err := veldscan.New(
//		veldscan.WithHeader("Referer", "https://example.com/"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	m := s.Parse(ctx, "https://example.com/master.m3u8")
//	if !m.OK() {
//		log.Fatalf("%s: %s", m.Status, m.Error)
//	}
//	for _, v := range m.VideoTracks {
//		fmt.Println(v.StandardizedResolution, v.URL)
//	}
//
// Or use the convenience function:
//
//	m, err := veldscan.ParseURL(ctx, "https://example.com/master.m3u8")
package veldscan

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mohaanymo/veldscan/internal/cache"
	"github.com/mohaanymo/veldscan/internal/config"
	"github.com/mohaanymo/veldscan/internal/coordinator"
	"github.com/mohaanymo/veldscan/internal/httpclient"
	"github.com/mohaanymo/veldscan/internal/metrics"
	"github.com/mohaanymo/veldscan/internal/models"
	"github.com/mohaanymo/veldscan/internal/prober"
	"github.com/mohaanymo/veldscan/internal/selector"
)

// Scanner is the main API for parsing manifests. It owns one set of caches
// and is safe for concurrent use.
type Scanner struct {
	cfg     *config.Config
	coord   *coordinator.Coordinator
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

type options struct {
	cfg      *config.Config
	fetcher  httpclient.Fetcher
	logger   zerolog.Logger
	registry prometheus.Registerer
}

// Option configures the scanner.
type Option func(*options)

// New creates a new Scanner with the given options.
func New(opts ...Option) (*Scanner, error) {
	o := &options{
		cfg:    config.New(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	cfg := o.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if o.registry != nil {
		m = metrics.New(o.registry)
	}

	fetcher := o.fetcher
	if fetcher == nil {
		hf := httpclient.NewFetcher(httpclient.NewWithRateLimit(httpclient.DefaultConfig(), cfg.RequestsPerSecond))
		hf.Headers = cfg.Headers
		hf.UserAgent = cfg.UserAgent
		hf.Timeout = cfg.FetchTimeout
		hf.MaxRetries = cfg.MaxRetries
		hf.MaxBodyBytes = cfg.MaxBodyBytes
		hf.Logger = o.logger.With().Str("component", "fetcher").Logger()
		fetcher = hf
	}

	p := prober.New(fetcher,
		prober.WithAttempts(cfg.ProbeAttempts),
		prober.WithFetchPolicy(cfg.FetchTimeout, retriesFor(cfg.MaxRetries)),
		prober.WithInitInspection(cfg.InspectInitSegments),
		prober.WithLogger(o.logger),
		prober.WithMetrics(m),
	)

	coord := coordinator.New(fetcher,
		coordinator.WithStore(cache.NewStore(cfg.ContentCacheTTL)),
		coordinator.WithProber(p),
		coordinator.WithFetchPolicy(cfg.FetchTimeout, retriesFor(cfg.MaxRetries)),
		coordinator.WithLogger(o.logger),
		coordinator.WithMetrics(m),
	)

	return &Scanner{
		cfg:     cfg,
		coord:   coord,
		metrics: m,
		logger:  o.logger,
	}, nil
}

// retriesFor maps a configured retry budget onto a fetch request, where
// zero means "fetcher default" and negative means none.
func retriesFor(n int) int {
	if n == 0 {
		return -1
	}
	return n
}

// WithConfig replaces the whole configuration with a copy of cfg. Later
// options still apply and never modify cfg itself.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.cfg = cfg.Clone()
		}
	}
}

// WithHeaders sets custom HTTP headers for every request.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) {
		if o.cfg.Headers == nil {
			o.cfg.Headers = make(map[string]string)
		}
		for k, v := range headers {
			o.cfg.Headers[k] = v
		}
	}
}

// WithHeader adds a single HTTP header.
func WithHeader(key, value string) Option {
	return WithHeaders(map[string]string{key: value})
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.cfg.UserAgent = ua }
}

// WithTimeout sets the timeout of each individual fetch (default: 10s).
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.cfg.FetchTimeout = d }
}

// WithRetries sets the retry budget of each fetch (default: 2).
func WithRetries(n int) Option {
	return func(o *options) { o.cfg.MaxRetries = n }
}

// WithProbeAttempts sets how many renditions of a master are tried (default: 3).
func WithProbeAttempts(n int) Option {
	return func(o *options) { o.cfg.ProbeAttempts = n }
}

// WithContentCacheTTL sets how long fetched manifest bytes are reused (default: 60s).
func WithContentCacheTTL(d time.Duration) Option {
	return func(o *options) { o.cfg.ContentCacheTTL = d }
}

// WithRateLimit caps outgoing requests per second. Set to 0 for unlimited (default).
func WithRateLimit(requestsPerSec float64) Option {
	return func(o *options) { o.cfg.RequestsPerSecond = requestsPerSec }
}

// WithInitSegmentInspection enables decoding fMP4 init segments of probed
// renditions to detect sample-level encryption.
func WithInitSegmentInspection(enabled bool) Option {
	return func(o *options) { o.cfg.InspectInitSegments = enabled }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics registers Prometheus collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// WithFetcher replaces the HTTP fetcher, e.g. to route requests through a
// browser session.
func WithFetcher(f Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// Parse fully parses url: renditions are extracted and masters are probed.
func (s *Scanner) Parse(ctx context.Context, url string) *Manifest {
	return s.coord.ParseManifest(ctx, url, nil, models.ModeFull)
}

// Classify only decides whether url is a master or a variant.
func (s *Scanner) Classify(ctx context.Context, url string) *Manifest {
	return s.coord.ParseManifest(ctx, url, nil, models.ModeLight)
}

// ParseManifest parses url in the given mode with extra per-request headers.
func (s *Scanner) ParseManifest(ctx context.Context, url string, headers map[string]string, mode Mode) *Manifest {
	return s.coord.ParseManifest(ctx, url, headers, mode)
}

// GetMasterForVariant returns the cached master listing url, or nil.
func (s *Scanner) GetMasterForVariant(url string) *Manifest {
	return s.coord.GetMasterForVariant(url)
}

// IsKnownVariant reports whether url is a rendition of a cached master.
func (s *Scanner) IsKnownVariant(url string) bool {
	return s.coord.IsKnownVariant(url)
}

// IsKnownMaster reports whether url is a cached master.
func (s *Scanner) IsKnownMaster(url string) bool {
	return s.coord.IsKnownMaster(url)
}

// BestOptions returns the best video, its audio and all subtitles of a
// cached master.
func (s *Scanner) BestOptions(url string) (Selection, bool) {
	return s.coord.BestOptions(url)
}

// Select applies a selector expression such as "720p+en" to m.
// Examples: "best", "1080p", "all", "v:0+a:1", "s:en,fr"
func Select(m *Manifest, expr string) (Selection, error) {
	return selector.New(m).Select(expr)
}

// Masters returns copies of every cached master.
func (s *Scanner) Masters() []*Manifest {
	return s.coord.Masters()
}

// ClearCaches drops every cached manifest.
func (s *Scanner) ClearCaches() {
	s.coord.ClearCaches()
}

// EvictExpired drops expired content cache entries and returns their count.
func (s *Scanner) EvictExpired() int {
	return s.coord.EvictExpired()
}

// Metrics returns the collectors, or nil when metrics are disabled.
func (s *Scanner) Metrics() *metrics.Metrics {
	return s.metrics
}

// Config returns the effective configuration.
func (s *Scanner) Config() config.Config {
	return *s.cfg
}

// ParseURL is a convenience function for one-off parses. The error is only
// set for invalid options; manifest problems are reported in the result.
func ParseURL(ctx context.Context, url string, opts ...Option) (*Manifest, error) {
	s, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return s.Parse(ctx, url), nil
}
