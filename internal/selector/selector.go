// Package selector picks renditions out of a parsed manifest using short
// selector expressions such as "best", "720p+en" or "v:0+a:1+s:fr".
package selector

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mohaanymo/veldscan/internal/models"
)

// DefaultSelector picks the best video with its audio and every subtitle.
const DefaultSelector = "best"

var (
	// ErrNoTracks is returned for a manifest without renditions.
	ErrNoTracks = errors.New("no tracks available")
	// ErrNoMatch is returned when a selector matches nothing.
	ErrNoMatch = errors.New("no tracks matched selector")
)

// Selection is the set of renditions chosen by a selector.
type Selection struct {
	Video     *models.VideoTrack     `json:"video,omitempty"`
	Audio     []models.AudioTrack    `json:"audio"`
	Subtitles []models.SubtitleTrack `json:"subtitles"`
}

// Empty reports whether nothing was selected.
func (s Selection) Empty() bool {
	return s.Video == nil && len(s.Audio) == 0 && len(s.Subtitles) == 0
}

// TrackSelector provides track selection over one manifest.
type TrackSelector struct {
	Videos    []models.VideoTrack
	Audios    []models.AudioTrack
	Subtitles []models.SubtitleTrack
}

// New copies and orders the manifest's renditions: videos by effective
// bandwidth, audios default first then by bandwidth.
func New(m *models.Manifest) *TrackSelector {
	ts := &TrackSelector{
		Videos:    append([]models.VideoTrack(nil), m.VideoTracks...),
		Audios:    append([]models.AudioTrack(nil), m.AudioTracks...),
		Subtitles: append([]models.SubtitleTrack(nil), m.SubtitleTracks...),
	}

	sort.SliceStable(ts.Videos, func(i, j int) bool {
		return ts.Videos[i].EffectiveBandwidth() > ts.Videos[j].EffectiveBandwidth()
	})
	sort.SliceStable(ts.Audios, func(i, j int) bool {
		if ts.Audios[i].Default != ts.Audios[j].Default {
			return ts.Audios[i].Default
		}
		return ts.Audios[i].Bandwidth > ts.Audios[j].Bandwidth
	})
	return ts
}

// Select applies selector. Parts are joined with "+".
func (ts *TrackSelector) Select(selector string) (Selection, error) {
	if len(ts.Videos)+len(ts.Audios)+len(ts.Subtitles) == 0 {
		return Selection{}, ErrNoTracks
	}

	selector = strings.ToLower(strings.TrimSpace(selector))
	if selector == "" {
		selector = DefaultSelector
	}

	var sel Selection
	switch selector {
	case "best", "bv+ba", "best-video+best-audio":
		return ts.best(), nil
	case "all":
		sel.Video = ts.bestVideo()
		sel.Audio = append(sel.Audio, ts.Audios...)
		sel.Subtitles = append(sel.Subtitles, ts.Subtitles...)
		return sel, nil
	}

	for _, part := range strings.Split(selector, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if err := ts.apply(&sel, part); err != nil {
			return Selection{}, err
		}
	}

	if sel.Empty() {
		return Selection{}, fmt.Errorf("%w: %s", ErrNoMatch, selector)
	}

	// Auto-add audio for a lone video choice.
	if sel.Video != nil && len(sel.Audio) == 0 {
		if a := ts.audioFor(sel.Video); a != nil {
			sel.Audio = append(sel.Audio, *a)
		}
	}
	return sel, nil
}

// Best is the selection for DefaultSelector: the highest bandwidth video,
// the audio of its group and every subtitle.
func Best(m *models.Manifest) (Selection, error) {
	return New(m).Select(DefaultSelector)
}

func (ts *TrackSelector) best() Selection {
	sel := Selection{Video: ts.bestVideo()}
	if a := ts.audioFor(sel.Video); a != nil {
		sel.Audio = []models.AudioTrack{*a}
	}
	sel.Subtitles = append(sel.Subtitles, ts.Subtitles...)
	return sel
}

func (ts *TrackSelector) apply(sel *Selection, part string) error {
	switch part {
	case "bv", "best-video":
		sel.Video = ts.bestVideo()
		return nil
	case "ba", "best-audio":
		if len(ts.Audios) > 0 {
			sel.Audio = append(sel.Audio, ts.Audios[0])
		}
		return nil
	case "all-subs", "all-subtitles":
		sel.Subtitles = append(sel.Subtitles, ts.Subtitles...)
		return nil
	}

	// Typed selectors: "v:720p", "a:en", "s:fr", "video:0"
	if typ, val, ok := strings.Cut(part, ":"); ok {
		return ts.applyTyped(sel, typ, val)
	}

	if isResolutionSelector(part) {
		if v := ts.findByResolution(part); v != nil {
			sel.Video = v
		}
		return nil
	}

	// Bare language codes select audio.
	if len(part) == 2 || len(part) == 3 {
		if a := ts.findAudioByLanguage(part); a != nil {
			sel.Audio = append(sel.Audio, *a)
			return nil
		}
	}

	return ts.applyCodec(sel, part)
}

func (ts *TrackSelector) applyTyped(sel *Selection, typ, val string) error {
	idx, isIndex := parseIndex(val)

	switch typ {
	case "video", "v":
		switch {
		case isIndex:
			if idx >= len(ts.Videos) {
				return fmt.Errorf("video index %d out of range", idx)
			}
			sel.Video = &ts.Videos[idx]
		case isResolutionSelector(val):
			sel.Video = ts.findByResolution(val)
		}
	case "audio", "a":
		if isIndex {
			if idx >= len(ts.Audios) {
				return fmt.Errorf("audio index %d out of range", idx)
			}
			sel.Audio = append(sel.Audio, ts.Audios[idx])
			return nil
		}
		for _, lang := range strings.Split(val, ",") {
			if a := ts.findAudioByLanguage(lang); a != nil {
				sel.Audio = append(sel.Audio, *a)
			}
		}
	case "subtitle", "sub", "s":
		if isIndex {
			if idx >= len(ts.Subtitles) {
				return fmt.Errorf("subtitle index %d out of range", idx)
			}
			sel.Subtitles = append(sel.Subtitles, ts.Subtitles[idx])
			return nil
		}
		for _, lang := range strings.Split(val, ",") {
			for _, s := range ts.Subtitles {
				if languageMatches(s.Language, lang) {
					sel.Subtitles = append(sel.Subtitles, s)
					break
				}
			}
		}
	default:
		return fmt.Errorf("unknown track type %q", typ)
	}
	return nil
}

func (ts *TrackSelector) applyCodec(sel *Selection, codec string) error {
	for i := range ts.Audios {
		if strings.Contains(strings.ToLower(ts.Audios[i].Codecs), codec) {
			sel.Audio = append(sel.Audio, ts.Audios[i])
			return nil
		}
	}
	for i := range ts.Videos {
		if strings.Contains(strings.ToLower(ts.Videos[i].Codecs), codec) {
			sel.Video = &ts.Videos[i]
			return nil
		}
	}
	return nil
}

func (ts *TrackSelector) bestVideo() *models.VideoTrack {
	if len(ts.Videos) == 0 {
		return nil
	}
	return &ts.Videos[0]
}

// audioFor returns the audio of v's group (default first), else the best audio.
func (ts *TrackSelector) audioFor(v *models.VideoTrack) *models.AudioTrack {
	if len(ts.Audios) == 0 {
		return nil
	}
	if v != nil && v.AudioGroupID != "" {
		for i := range ts.Audios {
			if ts.Audios[i].GroupID == v.AudioGroupID {
				return &ts.Audios[i]
			}
		}
	}
	return &ts.Audios[0]
}

func (ts *TrackSelector) findAudioByLanguage(lang string) *models.AudioTrack {
	for i := range ts.Audios {
		if languageMatches(ts.Audios[i].Language, lang) {
			return &ts.Audios[i]
		}
	}
	return nil
}

func isResolutionSelector(s string) bool {
	s = strings.ToLower(s)
	if s == "4k" || s == "2k" || s == "hd" || s == "fhd" || s == "sd" {
		return true
	}
	_, ok := parseResolution(s)
	return ok
}

// parseResolution converts "1080p", "4k", "hd" and friends to a height.
func parseResolution(s string) (int, bool) {
	switch strings.ToLower(s) {
	case "4k", "2160p":
		return 2160, true
	case "2k", "1440p":
		return 1440, true
	case "fhd", "1080p":
		return 1080, true
	case "hd", "720p":
		return 720, true
	case "sd", "480p":
		return 480, true
	}
	if !strings.HasSuffix(s, "p") {
		return 0, false
	}
	h, err := strconv.Atoi(strings.TrimSuffix(s, "p"))
	if err != nil || h <= 0 {
		return 0, false
	}
	return h, true
}

// findByResolution returns the video closest to the requested height.
func (ts *TrackSelector) findByResolution(res string) *models.VideoTrack {
	target, ok := parseResolution(res)
	if !ok {
		return nil
	}

	var best *models.VideoTrack
	bestDiff := int(^uint(0) >> 1)
	for i := range ts.Videos {
		diff := abs(ts.Videos[i].Height - target)
		if diff < bestDiff {
			bestDiff = diff
			best = &ts.Videos[i]
		}
	}
	return best
}

func parseIndex(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
