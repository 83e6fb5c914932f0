// Package prober fetches a few renditions of a master manifest to learn the
// metadata shared by all of them: duration, live status and encryption.
package prober

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohaanymo/veldscan/internal/extractor"
	"github.com/mohaanymo/veldscan/internal/httpclient"
	"github.com/mohaanymo/veldscan/internal/initseg"
	"github.com/mohaanymo/veldscan/internal/metrics"
	"github.com/mohaanymo/veldscan/internal/models"
	"github.com/mohaanymo/veldscan/internal/parser"
	"github.com/mohaanymo/veldscan/internal/urlutil"
)

// DefaultAttempts is the number of renditions tried per master.
const DefaultAttempts = 3

// Kind is the rendition list a candidate comes from.
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
	KindSubtitle
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindSubtitle:
		return "subtitle"
	default:
		return "video"
	}
}

// Candidate identifies one rendition that may be probed.
type Candidate struct {
	Kind  Kind
	Index int
	URL   string
}

// Result is the outcome of a probe.
type Result struct {
	// Metadata is nil when every attempt failed.
	Metadata *models.PlaybackMetadata
	// Probed is the candidate whose metadata was propagated.
	Probed   *Candidate
	Attempts int
	// NoDuration is set when no attempt yielded a duration for VOD content,
	// including when every attempt failed.
	NoDuration bool
}

// Prober runs the candidate loop.
type Prober struct {
	fetcher     httpclient.Fetcher
	attempts    int
	timeout     time.Duration
	maxRetries  int
	inspectInit bool
	logger      zerolog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Prober.
type Option func(*Prober)

// WithAttempts sets the number of candidates tried.
func WithAttempts(n int) Option {
	return func(p *Prober) {
		if n > 0 {
			p.attempts = n
		}
	}
}

// WithFetchPolicy sets the per-fetch timeout and retry budget.
func WithFetchPolicy(timeout time.Duration, maxRetries int) Option {
	return func(p *Prober) {
		p.timeout = timeout
		p.maxRetries = maxRetries
	}
}

// WithInitInspection enables fMP4 init segment inspection of the probed playlist.
func WithInitInspection(enabled bool) Option {
	return func(p *Prober) { p.inspectInit = enabled }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Prober) { p.logger = l.With().Str("component", "prober").Logger() }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Prober) { p.metrics = m }
}

// New creates a Prober using f for every fetch.
func New(f httpclient.Fetcher, opts ...Option) *Prober {
	p := &Prober{
		fetcher:  f,
		attempts: DefaultAttempts,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Candidates lists probe candidates in priority order: video, then audio
// with its own playlist, then subtitles. Embedded audio shares its URL with
// a video rendition and is skipped.
func Candidates(r *extractor.Renditions) []Candidate {
	var out []Candidate
	for i, v := range r.Video {
		out = append(out, Candidate{Kind: KindVideo, Index: i, URL: v.URL})
	}
	for i, a := range r.Audio {
		if a.IsEmbedded {
			continue
		}
		out = append(out, Candidate{Kind: KindAudio, Index: i, URL: a.URL})
	}
	for i, s := range r.Subtitles {
		out = append(out, Candidate{Kind: KindSubtitle, Index: i, URL: s.URL})
	}
	return out
}

// Probe tries up to the configured number of candidates, one at a time. It
// stops at the first live playlist or the first one with a duration. When
// no candidate is conclusive the first successful one is used. The chosen
// metadata is propagated onto every rendition of r.
func (p *Prober) Probe(ctx context.Context, r *extractor.Renditions, headers map[string]string) Result {
	candidates := Candidates(r)
	if len(candidates) > p.attempts {
		candidates = candidates[:p.attempts]
	}

	var (
		res       Result
		chosen    *Candidate
		chosenMD  *models.PlaybackMetadata
		fallback  *Candidate
		fallbackM *models.PlaybackMetadata
	)

	for i := range candidates {
		c := candidates[i]
		res.Attempts++

		md, err := p.probeOne(ctx, c, headers)
		if err != nil {
			p.metrics.ProbeAttempt("failed")
			p.logger.Warn().
				Err(err).
				Str("kind", c.Kind.String()).
				Str("url", c.URL).
				Int("attempt", res.Attempts).
				Msg("probe candidate failed")
			if ctx.Err() != nil {
				break
			}
			continue
		}
		p.metrics.ProbeAttempt("ok")

		if md.IsLive || md.Duration != nil {
			chosen, chosenMD = &c, md
			break
		}
		if fallback == nil {
			fallback, fallbackM = &c, md
		}
	}

	if chosen == nil {
		chosen, chosenMD = fallback, fallbackM
	}
	if chosen == nil {
		res.NoDuration = true
		return res
	}

	res.Metadata = chosenMD
	res.Probed = chosen
	res.NoDuration = chosenMD.Duration == nil && !chosenMD.IsLive
	Propagate(r, chosenMD, chosen)
	return res
}

func (p *Prober) probeOne(ctx context.Context, c Candidate, headers map[string]string) (*models.PlaybackMetadata, error) {
	resp := p.fetcher.Fetch(ctx, httpclient.Request{
		URL:        c.URL,
		Headers:    headers,
		Timeout:    p.timeout,
		MaxRetries: p.maxRetries,
	})
	if !resp.Success {
		if resp.Err == nil {
			return nil, fmt.Errorf("fetch %s: status %d", c.URL, resp.Status)
		}
		return nil, resp.Err
	}

	pl, err := parser.ParseHLS(resp.Text())
	if err != nil {
		return nil, err
	}
	md := pl.Summary()

	if p.inspectInit && pl.Map != nil {
		p.inspectInitSegment(ctx, c, pl.Map.URI, headers, md)
	}
	return md, nil
}

// inspectInitSegment marks md protected when the #EXT-X-MAP init segment
// carries a protection scheme. Failures are logged and ignored.
func (p *Prober) inspectInitSegment(ctx context.Context, c Candidate, mapURI string, headers map[string]string, md *models.PlaybackMetadata) {
	initURL := urlutil.Resolve(urlutil.BaseDir(c.URL), mapURI)
	resp := p.fetcher.Fetch(ctx, httpclient.Request{
		URL:        initURL,
		Headers:    headers,
		Timeout:    p.timeout,
		MaxRetries: p.maxRetries,
	})
	if !resp.Success {
		p.logger.Debug().Err(resp.Err).Str("url", initURL).Msg("init segment fetch failed")
		return
	}

	info, err := initseg.Inspect(resp.Content)
	if err != nil {
		p.logger.Debug().Err(err).Str("url", initURL).Msg("init segment not decodable")
		return
	}
	if info.Protected() {
		md.IsEncrypted = true
		md.ProtectionScheme = info.Scheme()
		if md.EncryptionMethod == "" {
			md.EncryptionMethod = info.Scheme()
		}
	}
}

// Propagate writes an independent copy of md onto every rendition of r. The
// probed candidate, if any, is marked as directly fetched. Video renditions
// get a size estimate when the duration is known.
func Propagate(r *extractor.Renditions, md *models.PlaybackMetadata, probed *Candidate) {
	isProbed := func(k Kind, i int) bool {
		return probed != nil && probed.Kind == k && probed.Index == i
	}

	for i := range r.Video {
		v := &r.Video[i]
		v.Metadata = md.Clone()
		v.DirectlyFetched = isProbed(KindVideo, i)
		v.EstimatedFileSizeBytes = estimateSize(v.Bandwidth, md.Duration)
	}
	for i := range r.Audio {
		r.Audio[i].Metadata = md.Clone()
		r.Audio[i].DirectlyFetched = isProbed(KindAudio, i)
	}
	for i := range r.Subtitles {
		r.Subtitles[i].Metadata = md.Clone()
		r.Subtitles[i].DirectlyFetched = isProbed(KindSubtitle, i)
	}
}

func estimateSize(bandwidth int64, duration *int) *int64 {
	if duration == nil || bandwidth <= 0 {
		return nil
	}
	n := int64(math.Round(float64(bandwidth) / 8 * float64(*duration)))
	return &n
}
