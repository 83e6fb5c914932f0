package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mohaanymo/veldscan"
	"github.com/mohaanymo/veldscan/internal/config"
	"github.com/mohaanymo/veldscan/internal/logging"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

var (
	logger zerolog.Logger
	cfg    *config.Config

	configPath string
	headerArgs []string
	timeout    time.Duration
	retries    int
	logLevel   string
	pretty     bool
)

var rootCmd = &cobra.Command{
	Use:           "veldscan",
	Short:         "veldscan - HLS/DASH manifest inspector",
	Long:          "veldscan classifies and parses HLS and DASH manifests, lists their renditions and probes duration, live and encryption metadata.",
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file")
	flags.StringArrayVarP(&headerArgs, "header", "H", nil, "Custom header \"Name: value\" (repeatable)")
	flags.DurationVar(&timeout, "timeout", 0, "Timeout of each fetch (default 10s)")
	flags.IntVar(&retries, "retries", -1, "Retries per fetch (default 2)")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&pretty, "pretty", false, "Human readable logs")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig merges the config file, the environment and command line flags.
func loadConfig() error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	for _, h := range headerArgs {
		name, value, err := config.ParseHeader(h)
		if err != nil {
			return err
		}
		cfg.Headers[name] = value
	}
	if timeout > 0 {
		cfg.FetchTimeout = timeout
	}
	if retries >= 0 {
		cfg.MaxRetries = retries
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if pretty {
		cfg.LogPretty = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger = logging.Setup(cfg.LogLevel, cfg.LogPretty)
	return nil
}

func newScanner(opts ...veldscan.Option) (*veldscan.Scanner, error) {
	all := append([]veldscan.Option{
		veldscan.WithConfig(cfg),
		veldscan.WithLogger(logger),
	}, opts...)
	return veldscan.New(all...)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
