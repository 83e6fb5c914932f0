// Package httpclient provides the shared HTTP client and the manifest fetch
// adapter used by the scanner.
package httpclient

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Config holds HTTP client configuration.
type Config struct {
	Timeout         time.Duration
	MaxConnsPerHost int
	DisableHTTP2    bool
	Headers         map[string]string
}

// DefaultConfig returns sensible defaults for manifest fetching.
func DefaultConfig() Config {
	return Config{
		Timeout:         0, // per-attempt timeouts are applied by the fetcher
		MaxConnsPerHost: 16,
		DisableHTTP2:    false,
	}
}

// New creates an HTTP client tuned for many small manifest requests.
func New(cfg Config) *http.Client {
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = 16
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		// Content-Encoding (br, gzip) is negotiated and decoded by the fetcher.
		DisableCompression: true,
		ForceAttemptHTTP2:  !cfg.DisableHTTP2,
		DialContext:        dialer.DialContext,

		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}

// NewWithRateLimit creates a client that issues at most requestsPerSec
// requests per second. Set to 0 for unlimited.
func NewWithRateLimit(cfg Config, requestsPerSec float64) *http.Client {
	client := New(cfg)

	if requestsPerSec > 0 {
		burst := int(requestsPerSec)
		if burst < 1 {
			burst = 1
		}
		client.Transport = &rateLimitedTransport{
			base:    client.Transport,
			limiter: rate.NewLimiter(rate.Limit(requestsPerSec), burst),
		}
	}

	return client
}

// rateLimitedTransport wraps a transport with a request rate limit.
type rateLimitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

func (t *rateLimitedTransport) wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
