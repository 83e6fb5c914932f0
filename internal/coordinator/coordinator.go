// Package coordinator ties fetching, parsing, extraction and probing together
// per normalized URL. It deduplicates concurrent requests, owns the caches
// and answers master/variant relationship queries.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/mohaanymo/veldscan/internal/cache"
	"github.com/mohaanymo/veldscan/internal/extractor"
	"github.com/mohaanymo/veldscan/internal/httpclient"
	"github.com/mohaanymo/veldscan/internal/metrics"
	"github.com/mohaanymo/veldscan/internal/models"
	"github.com/mohaanymo/veldscan/internal/parser"
	"github.com/mohaanymo/veldscan/internal/prober"
	"github.com/mohaanymo/veldscan/internal/selector"
	"github.com/mohaanymo/veldscan/internal/urlutil"
)

var errNoRepresentations = errors.New("MPD has no representations")

// Coordinator is safe for concurrent use.
type Coordinator struct {
	fetcher    httpclient.Fetcher
	prober     *prober.Prober
	store      *cache.Store
	inflight   *xsync.MapOf[string, struct{}]
	timeout    time.Duration
	maxRetries int
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithStore injects the cache store. A fresh one is created otherwise.
func WithStore(s *cache.Store) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.store = s
		}
	}
}

// WithProber replaces the default prober.
func WithProber(p *prober.Prober) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.prober = p
		}
	}
}

// WithFetchPolicy sets the per-fetch timeout and retry budget for manifest fetches.
func WithFetchPolicy(timeout time.Duration, maxRetries int) Option {
	return func(c *Coordinator) {
		c.timeout = timeout
		c.maxRetries = maxRetries
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = l.With().Str("component", "coordinator").Logger() }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// New creates a coordinator fetching through f.
func New(f httpclient.Fetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		fetcher:  f,
		inflight: xsync.NewMapOf[string, struct{}](),
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = cache.NewStore(cache.DefaultContentTTL)
	}
	if c.prober == nil {
		c.prober = prober.New(f,
			prober.WithFetchPolicy(c.timeout, c.maxRetries),
			prober.WithLogger(c.logger),
			prober.WithMetrics(c.metrics),
		)
	}
	return c
}

// ParseManifest fetches and parses rawURL. It never fails: problems are
// reported through the returned manifest's Status. A second request for a
// URL already in flight returns immediately with StatusProcessing.
func (c *Coordinator) ParseManifest(ctx context.Context, rawURL string, headers map[string]string, mode models.Mode) *models.Manifest {
	norm := urlutil.Normalize(rawURL)
	log := c.logger.With().
		Str("request_id", uuid.NewString()).
		Str("url", rawURL).
		Str("mode", mode.String()).
		Logger()

	if mode == models.ModeFull {
		if cached, ok := c.store.Masters.Get(norm); ok {
			c.metrics.CacheHit("master")
			log.Debug().Msg("master cache hit")
			out := cached.Clone()
			out.URL = rawURL
			c.metrics.Parse(out.Format.String(), string(out.Status))
			return out
		}
	}

	if _, loaded := c.inflight.LoadOrStore(norm, struct{}{}); loaded {
		log.Debug().Msg("request already in flight")
		m := models.NewManifest(rawURL, norm, models.StatusProcessing)
		m.Mode = mode.String()
		m.ValidatedAt = c.now()
		c.metrics.Parse(models.FormatUnknown.String(), string(models.StatusProcessing))
		return m
	}
	c.metrics.InFlightAdd(1)
	defer func() {
		c.inflight.Delete(norm)
		c.metrics.InFlightAdd(-1)
	}()

	m := c.run(ctx, log, rawURL, norm, headers, mode)

	switch {
	case !m.OK():
		c.store.Forget(norm)
		c.metrics.SetMastersCached(c.store.Masters.Len())
		log.Warn().Str("status", string(m.Status)).Str("error", m.Error).Msg("manifest parse failed")
	case m.IsMaster && mode == models.ModeFull:
		c.store.Masters.Put(norm, m.Clone())
		c.metrics.SetMastersCached(c.store.Masters.Len())
		log.Info().
			Str("format", m.Format.String()).
			Int("videos", len(m.VideoTracks)).
			Int("audios", len(m.AudioTracks)).
			Int("subtitles", len(m.SubtitleTracks)).
			Msg("master cached")
	}

	c.metrics.Parse(m.Format.String(), string(m.Status))
	return m
}

// run parses one manifest, converting any panic into a parse-error result.
func (c *Coordinator) run(ctx context.Context, log zerolog.Logger, rawURL, norm string, headers map[string]string, mode models.Mode) (m *models.Manifest) {
	m = models.NewManifest(rawURL, norm, models.StatusSuccess)
	m.Mode = mode.String()
	m.ValidatedAt = c.now()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic while parsing")
			m = c.failure(m, models.NewStatusError(models.StatusParseError, fmt.Errorf("panic: %v", r)))
		}
	}()

	if err := c.parse(ctx, log, m, headers, mode); err != nil {
		return c.failure(m, err)
	}
	if mode == models.ModeFull {
		m.ParsedAt = c.now()
	}
	return m
}

// failure builds the empty, well-typed result for err, keeping identity fields.
func (c *Coordinator) failure(m *models.Manifest, err error) *models.Manifest {
	out := models.NewManifest(m.URL, m.NormalizedURL, models.StatusOf(err))
	out.Format = m.Format
	out.Mode = m.Mode
	out.ValidatedAt = m.ValidatedAt
	out.Error = err.Error()
	return out
}

func (c *Coordinator) parse(ctx context.Context, log zerolog.Logger, m *models.Manifest, headers map[string]string, mode models.Mode) error {
	body, err := c.content(ctx, log, m.URL, m.NormalizedURL, headers)
	if err != nil {
		return err
	}
	text := string(body)

	m.Format = parser.DetectFormat(m.URL, text)
	switch m.Format {
	case models.FormatHLS:
		return c.parseHLS(ctx, m, text, headers, mode)
	case models.FormatDASH:
		return c.parseDASH(m, text, mode)
	default:
		return models.NewStatusError(models.StatusUnknownFormat, errors.New("content is neither HLS nor DASH"))
	}
}

// content returns the manifest bytes, from the content cache when fresh.
func (c *Coordinator) content(ctx context.Context, log zerolog.Logger, rawURL, norm string, headers map[string]string) ([]byte, error) {
	if body, ok := c.store.Content.Get(norm); ok {
		c.metrics.CacheHit("content")
		log.Debug().Msg("content cache hit")
		return body, nil
	}

	resp := c.fetcher.Fetch(ctx, httpclient.Request{
		URL:        rawURL,
		Headers:    headers,
		Timeout:    c.timeout,
		MaxRetries: c.maxRetries,
	})
	if !resp.Success {
		c.metrics.Fetch("failed")
		err := resp.Err
		if err == nil {
			err = fmt.Errorf("status %d", resp.Status)
		}
		return nil, models.NewStatusError(models.StatusFetchFailed, fmt.Errorf("fetch manifest: %w", err))
	}
	c.metrics.Fetch("ok")

	c.store.Content.Put(norm, resp.Content)
	return resp.Content, nil
}

func (c *Coordinator) parseHLS(ctx context.Context, m *models.Manifest, text string, headers map[string]string, mode models.Mode) error {
	if mode == models.ModeLight {
		if !strings.HasPrefix(strings.TrimLeft(text, "\ufeff \t\r\n"), "#EXTM3U") {
			return models.NewStatusError(models.StatusInvalidFormat, parser.ErrMissingHeader)
		}
		cls := parser.ClassifyHLSLight(text)
		m.IsMaster, m.IsVariant, m.Confidence = cls.IsMaster, cls.IsVariant, cls.Confidence
		m.Version = parser.ScanVersion(text)
		return nil
	}

	pl, err := parser.ParseHLS(text)
	if err != nil {
		if errors.Is(err, parser.ErrMissingHeader) {
			return models.NewStatusError(models.StatusInvalidFormat, err)
		}
		return models.NewStatusError(models.StatusParseError, err)
	}

	cls := parser.ClassifyHLS(pl)
	if !cls.IsMaster && !cls.IsVariant {
		return models.NewStatusError(models.StatusInvalidFormat, parser.ErrNoEntries)
	}
	m.IsMaster, m.IsVariant = cls.IsMaster, cls.IsVariant
	// The heuristic score is informational; the strict classification wins.
	m.Confidence = parser.ClassifyHLSLight(text).Confidence
	m.Version = pl.Version

	if !m.IsMaster {
		m.ApplyMetadata(pl.Summary())
		if master := c.masterFor(m.NormalizedURL); master != nil {
			m.MasterURL = master.URL
		}
		return nil
	}

	r := extractor.ExtractHLS(m.URL, pl)
	r.SetMasterURL(m.URL)

	sessionKey, hasSessionKey := pl.FirstSessionKey()
	if hasSessionKey {
		m.IsEncrypted = true
		m.EncryptionMethod = sessionKey.Method
	}

	res := c.prober.Probe(ctx, r, headers)
	if res.Metadata != nil {
		// A session key applies to every rendition, probed or not.
		if hasSessionKey && !res.Metadata.IsEncrypted {
			res.Metadata.IsEncrypted = true
			res.Metadata.EncryptionMethod = sessionKey.Method
			prober.Propagate(r, res.Metadata, res.Probed)
		}
		m.ApplyMetadata(res.Metadata)
	}
	m.NoDuration = res.NoDuration
	r.Apply(m)
	return nil
}

func (c *Coordinator) parseDASH(m *models.Manifest, text string, mode models.Mode) error {
	mpd, err := parser.ParseDASH(text)
	if err != nil {
		if errors.Is(err, parser.ErrNotDASH) {
			return models.NewStatusError(models.StatusInvalidFormat, err)
		}
		return models.NewStatusError(models.StatusParseError, err)
	}

	cls := parser.ClassifyDASH(mpd)
	if !cls.IsMaster {
		return models.NewStatusError(models.StatusInvalidFormat, errNoRepresentations)
	}
	m.IsMaster, m.Confidence = true, cls.Confidence
	if mode == models.ModeLight {
		return nil
	}

	r := extractor.ExtractDASH(m.URL, mpd)
	r.SetMasterURL(m.URL)

	md := mpd.Summary()
	prober.Propagate(r, md, nil)
	m.ApplyMetadata(md)
	m.NoDuration = md.Duration == nil && !md.IsLive
	r.Apply(m)
	return nil
}

// masterFor scans cached masters for a rendition with the given normalized URL.
func (c *Coordinator) masterFor(norm string) *models.Manifest {
	var found *models.Manifest
	c.store.Masters.Range(func(_ string, m *models.Manifest) bool {
		if hasRendition(m, norm) {
			found = m
			return false
		}
		return true
	})
	return found
}

func hasRendition(m *models.Manifest, norm string) bool {
	for i := range m.VideoTracks {
		if m.VideoTracks[i].NormalizedURL == norm {
			return true
		}
	}
	for i := range m.AudioTracks {
		if !m.AudioTracks[i].IsEmbedded && m.AudioTracks[i].NormalizedURL == norm {
			return true
		}
	}
	for i := range m.SubtitleTracks {
		if m.SubtitleTracks[i].NormalizedURL == norm {
			return true
		}
	}
	return false
}

// GetMasterForVariant returns a copy of the cached master listing variantURL
// as one of its renditions, or nil.
func (c *Coordinator) GetMasterForVariant(variantURL string) *models.Manifest {
	return c.masterFor(urlutil.Normalize(variantURL)).Clone()
}

// IsKnownVariant reports whether variantURL is a rendition of a cached master.
func (c *Coordinator) IsKnownVariant(variantURL string) bool {
	return c.masterFor(urlutil.Normalize(variantURL)) != nil
}

// IsKnownMaster reports whether masterURL is in the master cache.
func (c *Coordinator) IsKnownMaster(masterURL string) bool {
	_, ok := c.store.Masters.Get(urlutil.Normalize(masterURL))
	return ok
}

// Masters returns copies of every cached master.
func (c *Coordinator) Masters() []*models.Manifest {
	var out []*models.Manifest
	c.store.Masters.Range(func(_ string, m *models.Manifest) bool {
		out = append(out, m.Clone())
		return true
	})
	return out
}

// BestOptions returns the best selection of a cached master. ok is false
// when the master is not cached or has no renditions.
func (c *Coordinator) BestOptions(masterURL string) (sel selector.Selection, ok bool) {
	m, found := c.store.Masters.Get(urlutil.Normalize(masterURL))
	if !found {
		return selector.Selection{}, false
	}
	sel, err := selector.Best(m.Clone())
	if err != nil {
		return selector.Selection{}, false
	}
	return sel, true
}

// ClearCaches drops both caches.
func (c *Coordinator) ClearCaches() {
	c.store.Clear()
	c.metrics.SetMastersCached(0)
	c.logger.Info().Msg("caches cleared")
}

// EvictExpired drops expired content entries and returns how many went.
func (c *Coordinator) EvictExpired() int {
	n := c.store.EvictExpired()
	if n > 0 {
		c.logger.Debug().Int("evicted", n).Msg("expired content evicted")
	}
	return n
}

// InFlight returns the number of URLs currently being parsed.
func (c *Coordinator) InFlight() int {
	return c.inflight.Size()
}
