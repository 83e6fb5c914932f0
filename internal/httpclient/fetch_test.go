package httpclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher() (*HTTPFetcher, *[]time.Duration) {
	var waits []time.Duration
	f := NewFetcher(nil)
	f.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return f, &waits
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		assert.Equal(t, "veldscan-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		_, _ = w.Write([]byte("#EXTM3U\n"))
	}))
	defer srv.Close()

	f, _ := newTestFetcher()
	f.UserAgent = "veldscan-test"

	resp := f.Fetch(context.Background(), Request{URL: srv.URL + "/a.m3u8", Headers: map[string]string{"X-Test": "yes"}})
	require.True(t, resp.Success, "err: %v", resp.Err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "#EXTM3U\n", resp.Text())
	assert.Equal(t, "application/vnd.apple.mpegurl", resp.ContentType)
	assert.Zero(t, resp.RetryCount)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f, waits := newTestFetcher()
	resp := f.Fetch(context.Background(), Request{URL: srv.URL})

	require.True(t, resp.Success)
	assert.Equal(t, 2, resp.RetryCount)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{DefaultBackoff, 2 * DefaultBackoff}, *waits)
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f, _ := newTestFetcher()
	resp := f.Fetch(context.Background(), Request{URL: srv.URL, MaxRetries: 1})

	assert.False(t, resp.Success)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	assert.Error(t, resp.Err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f, _ := newTestFetcher()
	resp := f.Fetch(context.Background(), Request{URL: srv.URL})

	assert.False(t, resp.Success)
	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchHonoursRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f, waits := newTestFetcher()
	resp := f.Fetch(context.Background(), Request{URL: srv.URL})

	require.True(t, resp.Success)
	assert.Equal(t, []time.Duration{3 * time.Second}, *waits)
}

func TestFetchDecodesContentEncoding(t *testing.T) {
	payload := []byte("#EXTM3U\n#EXT-X-VERSION:3\n")

	var brBody bytes.Buffer
	bw := brotli.NewWriter(&brBody)
	_, _ = bw.Write(payload)
	require.NoError(t, bw.Close())

	var gzBody bytes.Buffer
	gw := gzip.NewWriter(&gzBody)
	_, _ = gw.Write(payload)
	require.NoError(t, gw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "br")
		switch r.URL.Path {
		case "/br":
			w.Header().Set("Content-Encoding", "br")
			_, _ = w.Write(brBody.Bytes())
		case "/gz":
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write(gzBody.Bytes())
		}
	}))
	defer srv.Close()

	f, _ := newTestFetcher()
	for _, path := range []string{"/br", "/gz"} {
		resp := f.Fetch(context.Background(), Request{URL: srv.URL + path})
		require.True(t, resp.Success, "%s: %v", path, resp.Err)
		assert.Equal(t, payload, resp.Content, path)
	}
}

func TestFetchBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), 2048))
	}))
	defer srv.Close()

	f, _ := newTestFetcher()
	f.MaxBodyBytes = 1024
	resp := f.Fetch(context.Background(), Request{URL: srv.URL})

	assert.False(t, resp.Success)
	assert.ErrorIs(t, resp.Err, ErrBodyTooLarge)
	assert.Zero(t, resp.RetryCount)
}

func TestFetchTimeoutPerAttempt(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f, _ := newTestFetcher()
	resp := f.Fetch(context.Background(), Request{URL: srv.URL, Timeout: 50 * time.Millisecond, MaxRetries: -1})

	assert.False(t, resp.Success)
	assert.Error(t, resp.Err)
}

func TestFetchRejectsNonHTTP(t *testing.T) {
	f, _ := newTestFetcher()
	for _, u := range []string{"blob:https://a.example.com/1", "file:///etc/hosts", ""} {
		resp := f.Fetch(context.Background(), Request{URL: u})
		assert.False(t, resp.Success)
		assert.ErrorIs(t, resp.Err, ErrNotHTTP)
	}
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 2*time.Second, parseRetryAfter("2", time.Minute))
	assert.Equal(t, 5*time.Second, parseRetryAfter("120", 5*time.Second))
	assert.Zero(t, parseRetryAfter("", time.Minute))
	assert.Zero(t, parseRetryAfter("soon", time.Minute))

	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	assert.Equal(t, 10*time.Second, parseRetryAfter(future, 10*time.Second))
}

func TestRateLimitedClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewWithRateLimit(DefaultConfig(), 1000)
	_, ok := client.Transport.(*rateLimitedTransport)
	require.True(t, ok)

	f := NewFetcher(client)
	resp := f.Fetch(context.Background(), Request{URL: srv.URL})
	assert.True(t, resp.Success)

	plain := NewWithRateLimit(DefaultConfig(), 0)
	_, ok = plain.Transport.(*rateLimitedTransport)
	assert.False(t, ok)
}
