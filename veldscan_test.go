package veldscan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohaanymo/veldscan/internal/config"
)

const (
	testMaster = `#EXTM3U
#EXT-X-MEDIA:TYPE=SUBTITLES,GROUP-ID="subs",NAME="English",LANGUAGE="en",URI="subs/en.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=500000,RESOLUTION=640x360,SUBTITLES="subs"
low.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2000000,RESOLUTION=1280x720,SUBTITLES="subs"
high.m3u8
`
	testVariant = "#EXTM3U\n#EXT-X-KEY:METHOD=AES-128,URI=\"key.bin\"\n#EXTINF:4.0,\na.ts\n#EXTINF:4.0,\nb.ts\n#EXTINF:4.0,\nc.ts\n#EXT-X-ENDLIST\n"
)

// memFetcher serves bodies from memory and counts requests per URL.
type memFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	calls  map[string]int
}

func newMemFetcher(bodies map[string]string) *memFetcher {
	return &memFetcher{bodies: bodies, calls: make(map[string]int)}
}

func (f *memFetcher) Fetch(_ context.Context, req FetchRequest) FetchResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.URL]++
	body, ok := f.bodies[req.URL]
	if !ok {
		return FetchResponse{Status: http.StatusNotFound}
	}
	return FetchResponse{Success: true, Status: http.StatusOK, Content: []byte(body)}
}

func (f *memFetcher) count(u string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[u]
}

func showFetcher() *memFetcher {
	return newMemFetcher(map[string]string{
		"https://cdn/show/master.m3u8": testMaster,
		"https://cdn/show/high.m3u8":   testVariant,
		"https://cdn/show/low.m3u8":    testVariant,
	})
}

func TestScannerEndToEnd(t *testing.T) {
	s, err := New(WithFetcher(showFetcher()))
	require.NoError(t, err)

	m := s.Parse(context.Background(), "https://cdn/show/master.m3u8")

	require.Equal(t, StatusSuccess, m.Status, m.Error)
	require.Len(t, m.VideoTracks, 2)
	assert.Equal(t, int64(2000000), m.VideoTracks[0].Bandwidth)
	assert.Equal(t, int64(500000), m.VideoTracks[1].Bandwidth)
	require.Len(t, m.SubtitleTracks, 1)
	assert.Equal(t, "https://cdn/show/subs/en.m3u8", m.SubtitleTracks[0].URL)
	assert.True(t, m.HasMediaGroups)

	// Propagated metadata is all-or-nothing on every sibling.
	for _, v := range m.VideoTracks {
		require.NotNil(t, v.Metadata)
		require.NotNil(t, v.Metadata.Duration)
		assert.Equal(t, 12, *v.Metadata.Duration)
		assert.True(t, v.Metadata.IsEncrypted)
		assert.Equal(t, "AES-128", v.Metadata.EncryptionMethod)
	}
	assert.True(t, m.IsEncrypted)

	assert.True(t, s.IsKnownMaster("https://cdn/show/master.m3u8"))
	assert.True(t, s.IsKnownVariant("https://cdn/show/low.m3u8"))
	assert.Equal(t, "https://cdn/show/master.m3u8", s.GetMasterForVariant("https://cdn/show/low.m3u8").URL)

	best, ok := s.BestOptions("https://cdn/show/master.m3u8")
	require.True(t, ok)
	assert.Equal(t, "https://cdn/show/high.m3u8", best.Video.URL)

	sel, err := Select(m, "360p")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/show/low.m3u8", sel.Video.URL)

	assert.Len(t, s.Masters(), 1)
	s.ClearCaches()
	assert.False(t, s.IsKnownMaster("https://cdn/show/master.m3u8"))
}

func TestScannerClassify(t *testing.T) {
	f := showFetcher()
	s, err := New(WithFetcher(f))
	require.NoError(t, err)

	m := s.Classify(context.Background(), "https://cdn/show/high.m3u8")
	require.Equal(t, StatusSuccess, m.Status)
	assert.True(t, m.IsVariant)
	assert.False(t, m.IsMaster)
	assert.Equal(t, "light", m.Mode)

	m = s.ParseManifest(context.Background(), "https://cdn/show/high.m3u8", map[string]string{"X-Test": "1"}, ModeFull)
	assert.Equal(t, 1, f.count("https://cdn/show/high.m3u8"), "content cache serves the second parse")
	require.NotNil(t, m.Duration)
	assert.Equal(t, 12, *m.Duration)
	assert.Equal(t, 3, m.SegmentCount)
	assert.False(t, m.IsLive)
}

func TestScannerOverHTTP(t *testing.T) {
	var mu sync.Mutex
	var gotUA, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotUA, gotReferer = r.UserAgent(), r.Header.Get("Referer")
		mu.Unlock()
		_, _ = w.Write([]byte("#EXTM3U\n#EXTINF:6,\nseg.ts\n"))
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	s, err := New(
		WithUserAgent("scanner-test"),
		WithHeader("Referer", "https://site/"),
		WithTimeout(2*time.Second),
		WithRetries(0),
		WithRateLimit(50),
		WithMetrics(reg),
	)
	require.NoError(t, err)

	m := s.Parse(context.Background(), srv.URL+"/live.m3u8")
	require.Equal(t, StatusSuccess, m.Status, m.Error)
	assert.True(t, m.IsLive, "no ENDLIST means live")
	assert.Nil(t, m.Duration)

	mu.Lock()
	assert.Equal(t, "scanner-test", gotUA)
	assert.Equal(t, "https://site/", gotReferer)
	mu.Unlock()

	require.NotNil(t, s.Metrics())
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics().ParseTotal.WithLabelValues("hls", "success")))
}

func TestScannerOptions(t *testing.T) {
	cfg := config.New()
	cfg.ProbeAttempts = 1

	s, err := New(
		WithConfig(cfg),
		WithHeaders(map[string]string{"A": "1"}),
		WithProbeAttempts(2),
		WithContentCacheTTL(time.Second),
		WithInitSegmentInspection(true),
	)
	require.NoError(t, err)

	got := s.Config()
	assert.Equal(t, 2, got.ProbeAttempts)
	assert.Equal(t, time.Second, got.ContentCacheTTL)
	assert.True(t, got.InspectInitSegments)
	assert.Equal(t, "1", got.Headers["A"])
	assert.Nil(t, s.Metrics())

	bad := config.New()
	bad.LogLevel = "shout"
	_, err = New(WithConfig(bad))
	assert.Error(t, err)

	_, err = ParseURL(context.Background(), "https://h/x.m3u8", WithConfig(bad))
	assert.Error(t, err)
}

func TestWithConfigLeavesCallerConfigAlone(t *testing.T) {
	cfg := config.New()
	cfg.Headers["Referer"] = "https://site/"

	s, err := New(
		WithConfig(cfg),
		WithHeader("X-Extra", "1"),
		WithUserAgent("other"),
	)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"Referer": "https://site/"}, cfg.Headers)
	assert.Equal(t, config.DefaultUserAgent, cfg.UserAgent)

	got := s.Config()
	assert.Equal(t, "1", got.Headers["X-Extra"])
	assert.Equal(t, "https://site/", got.Headers["Referer"])
	assert.Equal(t, "other", got.UserAgent)
}

func TestParseURL(t *testing.T) {
	m, err := ParseURL(context.Background(), "https://cdn/show/master.m3u8", WithFetcher(showFetcher()))
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, m.Status)
	assert.Equal(t, FormatHLS, m.Format)
}

func TestEvictExpired(t *testing.T) {
	s, err := New(WithFetcher(showFetcher()), WithContentCacheTTL(time.Millisecond))
	require.NoError(t, err)

	s.Classify(context.Background(), "https://cdn/show/high.m3u8")
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, s.EvictExpired())
}
