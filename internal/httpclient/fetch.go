package httpclient

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog"

	"github.com/mohaanymo/veldscan/internal/urlutil"
)

// Fetch defaults.
const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxRetries   = 2
	DefaultMaxBodyBytes = 8 << 20
	DefaultBackoff      = 500 * time.Millisecond
	MaxRetryAfterWait   = 10 * time.Second
)

var (
	// ErrNotHTTP is returned for URLs that cannot be fetched over HTTP(S).
	ErrNotHTTP = errors.New("not an http(s) URL")
	// ErrBodyTooLarge is returned when a body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("response body too large")
)

// Request is one fetch. Zero Timeout/MaxRetries use the fetcher defaults;
// a negative MaxRetries disables retries.
type Request struct {
	URL        string
	Headers    map[string]string
	Timeout    time.Duration
	MaxRetries int
}

// Response is the outcome of a fetch. A failed fetch has Success false and
// Err set; it never panics.
type Response struct {
	Success     bool
	Status      int
	Content     []byte
	ContentType string
	RetryCount  int
	Err         error
}

// Text returns the body as a string.
func (r Response) Text() string {
	return string(r.Content)
}

// Fetcher retrieves raw manifest or segment bytes.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) Response
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req Request) Response

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// HTTPFetcher implements Fetcher over an http.Client with per-attempt
// timeouts and retries on transport errors, 429 and 5xx.
type HTTPFetcher struct {
	Client       *http.Client
	Headers      map[string]string
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	MaxBodyBytes int64
	Backoff      time.Duration
	Logger       zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher returns an HTTPFetcher with defaults. A nil client uses New(DefaultConfig()).
func NewFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = New(DefaultConfig())
	}
	return &HTTPFetcher{
		Client:       client,
		Timeout:      DefaultFetchTimeout,
		MaxRetries:   DefaultMaxRetries,
		MaxBodyBytes: DefaultMaxBodyBytes,
		Backoff:      DefaultBackoff,
		Logger:       zerolog.Nop(),
	}
}

// Fetch performs req, retrying up to MaxRetries extra attempts.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) Response {
	if !urlutil.IsHTTP(req.URL) {
		return Response{Err: fmt.Errorf("fetch %q: %w", req.URL, ErrNotHTTP)}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = f.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	maxRetries := req.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = f.MaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}

	var resp Response
	for attempt := 0; ; attempt++ {
		var retryAfter time.Duration
		resp, retryAfter = f.attempt(ctx, req, timeout)
		resp.RetryCount = attempt

		if resp.Success || attempt >= maxRetries || !retryable(resp) || ctx.Err() != nil {
			return resp
		}

		wait := retryAfter
		if wait <= 0 {
			wait = f.backoff() * time.Duration(attempt+1)
		}
		f.Logger.Debug().
			Str("url", req.URL).
			Int("status", resp.Status).
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Err(resp.Err).
			Msg("retrying fetch")

		if err := f.doSleep(ctx, wait); err != nil {
			resp.Err = err
			return resp
		}
	}
}

func (f *HTTPFetcher) attempt(parent context.Context, req Request, timeout time.Duration) (Response, time.Duration) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return Response{Err: fmt.Errorf("build request: %w", err)}, 0
	}
	httpReq.Header.Set("Accept-Encoding", "br, gzip")
	if f.UserAgent != "" {
		httpReq.Header.Set("User-Agent", f.UserAgent)
	}
	for k, v := range f.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := f.Client.Do(httpReq)
	if err != nil {
		return Response{Err: fmt.Errorf("fetch %s: %w", req.URL, err)}, 0
	}
	defer httpResp.Body.Close()

	out := Response{
		Status:      httpResp.StatusCode,
		ContentType: httpResp.Header.Get("Content-Type"),
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, 64<<10))
		out.Err = fmt.Errorf("fetch %s: HTTP %d", req.URL, httpResp.StatusCode)
		var wait time.Duration
		if httpResp.StatusCode == http.StatusTooManyRequests {
			wait = parseRetryAfter(httpResp.Header.Get("Retry-After"), MaxRetryAfterWait)
		}
		return out, wait
	}

	body, err := f.readBody(httpResp)
	if err != nil {
		out.Err = fmt.Errorf("read %s: %w", req.URL, err)
		return out, 0
	}
	out.Content = body
	out.Success = true
	return out, 0
}

func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	limit := f.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

func (f *HTTPFetcher) backoff() time.Duration {
	if f.Backoff > 0 {
		return f.Backoff
	}
	return DefaultBackoff
}

func (f *HTTPFetcher) doSleep(ctx context.Context, d time.Duration) error {
	if f.sleep != nil {
		return f.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryable reports transport errors, 429 and 5xx. Other 4xx statuses and
// oversized bodies fail immediately.
func retryable(r Response) bool {
	switch {
	case errors.Is(r.Err, ErrBodyTooLarge):
		return false
	case r.Status == 0, r.Status == http.StatusTooManyRequests, r.Status >= 500:
		return true
	case r.Status >= 200 && r.Status < 300:
		// body read failure
		return r.Err != nil
	}
	return false
}

// parseRetryAfter parses Retry-After (seconds or HTTP-date); returns duration capped at max.
func parseRetryAfter(s string, max time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if sec, err := strconv.Atoi(s); err == nil && sec >= 0 {
		d := time.Duration(sec) * time.Second
		if d > max {
			return max
		}
		return d
	}
	t, err := http.ParseTime(s)
	if err != nil {
		return 0
	}
	until := time.Until(t)
	if until <= 0 {
		return 0
	}
	if until > max {
		return max
	}
	return until
}
