// Package models defines the normalized description of a parsed streaming manifest.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Format represents the streaming manifest format.
type Format int

const (
	FormatUnknown Format = iota
	FormatHLS
	FormatDASH
)

func (f Format) String() string {
	switch f {
	case FormatHLS:
		return "hls"
	case FormatDASH:
		return "dash"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "hls":
		*f = FormatHLS
	case "dash":
		*f = FormatDASH
	default:
		*f = FormatUnknown
	}
	return nil
}

// Mode selects how much work a parse does.
type Mode int

const (
	// ModeFull extracts every rendition and probes masters for metadata.
	ModeFull Mode = iota
	// ModeLight only classifies the manifest.
	ModeLight
)

func (m Mode) String() string {
	if m == ModeLight {
		return "light"
	}
	return "full"
}

// ParseMode converts "light"/"full" into a Mode. Anything else is full.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), "light") {
		return ModeLight
	}
	return ModeFull
}

// PlaybackMetadata is the probed metadata block shared by sibling renditions.
// It is either absent (nil) or fully populated on a track.
type PlaybackMetadata struct {
	// Duration in whole seconds; nil for live or indeterminate content.
	Duration         *int     `json:"duration"`
	IsLive           bool     `json:"isLive"`
	IsEncrypted      bool     `json:"isEncrypted"`
	EncryptionMethod string   `json:"encryptionMethod,omitempty"`
	ProtectionScheme string   `json:"protectionScheme,omitempty"`
	DRMSystems       []string `json:"drmSystems,omitempty"`
	Version          int      `json:"version,omitempty"`
	SegmentCount     int      `json:"segmentCount"`
}

// Clone returns an independent copy.
func (m *PlaybackMetadata) Clone() *PlaybackMetadata {
	if m == nil {
		return nil
	}
	c := *m
	if m.Duration != nil {
		d := *m.Duration
		c.Duration = &d
	}
	if m.DRMSystems != nil {
		c.DRMSystems = append([]string(nil), m.DRMSystems...)
	}
	return &c
}

// VideoTrack is one video rendition.
type VideoTrack struct {
	ID                     string  `json:"id,omitempty"`
	URL                    string  `json:"url"`
	NormalizedURL          string  `json:"normalizedUrl"`
	MasterURL              string  `json:"masterUrl,omitempty"`
	Bandwidth              int64   `json:"bandwidth"`
	AverageBandwidth       int64   `json:"averageBandwidth,omitempty"`
	Codecs                 string  `json:"codecs,omitempty"`
	Width                  int     `json:"width,omitempty"`
	Height                 int     `json:"height,omitempty"`
	StandardizedResolution string  `json:"standardizedResolution,omitempty"`
	FPS                    float64 `json:"fps,omitempty"`
	VideoContainer         string  `json:"videoContainer,omitempty"`
	AudioContainer         string  `json:"audioContainer,omitempty"`

	AudioGroupID    string `json:"audioGroupId,omitempty"`
	VideoGroupID    string `json:"videoGroupId,omitempty"`
	SubtitleGroupID string `json:"subtitleGroupId,omitempty"`
	CCGroupID       string `json:"ccGroupId,omitempty"`

	IsUsedForEmbeddedAudio bool              `json:"isUsedForEmbeddedAudio"`
	Metadata               *PlaybackMetadata `json:"metadata,omitempty"`
	EstimatedFileSizeBytes *int64            `json:"estimatedFileSizeBytes,omitempty"`
	DirectlyFetched        bool              `json:"directlyFetched"`
}

// EffectiveBandwidth is the average bandwidth when known, else the peak.
func (v *VideoTrack) EffectiveBandwidth() int64 {
	if v.AverageBandwidth > 0 {
		return v.AverageBandwidth
	}
	return v.Bandwidth
}

// AudioTrack is one audio rendition. URL is never empty.
type AudioTrack struct {
	ID            string `json:"id,omitempty"`
	GroupID       string `json:"groupId,omitempty"`
	Name          string `json:"name,omitempty"`
	Language      string `json:"language,omitempty"`
	URL           string `json:"url"`
	NormalizedURL string `json:"normalizedUrl"`
	Codecs        string `json:"codecs,omitempty"`
	Bandwidth     int64  `json:"bandwidth,omitempty"`
	Channels      string `json:"channels,omitempty"`
	Default       bool   `json:"default"`
	Autoselect    bool   `json:"autoselect"`
	Container     string `json:"container,omitempty"`
	IsEmbedded    bool   `json:"isEmbedded"`

	Metadata        *PlaybackMetadata `json:"metadata,omitempty"`
	DirectlyFetched bool              `json:"directlyFetched"`
}

// SubtitleTrack is one subtitle rendition. URL is never empty.
type SubtitleTrack struct {
	ID            string `json:"id,omitempty"`
	GroupID       string `json:"groupId,omitempty"`
	Name          string `json:"name,omitempty"`
	Language      string `json:"language,omitempty"`
	URL           string `json:"url"`
	NormalizedURL string `json:"normalizedUrl"`
	Codecs        string `json:"codecs,omitempty"`
	Default       bool   `json:"default"`
	Autoselect    bool   `json:"autoselect"`
	Forced        bool   `json:"forced"`
	Container     string `json:"container,omitempty"`
	IsEmbedded    bool   `json:"isEmbedded"`

	Metadata        *PlaybackMetadata `json:"metadata,omitempty"`
	DirectlyFetched bool              `json:"directlyFetched"`
}

// ClosedCaption is an in-stream caption service; it never has its own URL.
type ClosedCaption struct {
	GroupID    string `json:"groupId"`
	Name       string `json:"name,omitempty"`
	Language   string `json:"language,omitempty"`
	InstreamID string `json:"instreamId,omitempty"`
	Default    bool   `json:"default"`
	Autoselect bool   `json:"autoselect"`
}

// Manifest is the result of parsing one manifest URL.
type Manifest struct {
	URL           string    `json:"url"`
	NormalizedURL string    `json:"normalizedUrl"`
	Format        Format    `json:"format"`
	IsMaster      bool      `json:"isMaster"`
	IsVariant     bool      `json:"isVariant"`
	Status        Status    `json:"status"`
	Error         string    `json:"error,omitempty"`
	Mode          string    `json:"mode"`
	Confidence    float64   `json:"confidence,omitempty"`
	MasterURL     string    `json:"masterUrl,omitempty"`
	ValidatedAt   time.Time `json:"validatedAt"`
	ParsedAt      time.Time `json:"parsedAt"`

	Duration         *int     `json:"duration"`
	NoDuration       bool     `json:"noDuration,omitempty"`
	IsLive           bool     `json:"isLive"`
	IsEncrypted      bool     `json:"isEncrypted"`
	EncryptionMethod string   `json:"encryptionMethod,omitempty"`
	DRMSystems       []string `json:"drmSystems,omitempty"`
	Version          int      `json:"version,omitempty"`
	SegmentCount     int      `json:"segmentCount,omitempty"`

	VideoTracks    []VideoTrack    `json:"videoTracks"`
	AudioTracks    []AudioTrack    `json:"audioTracks"`
	SubtitleTracks []SubtitleTrack `json:"subtitleTracks"`
	ClosedCaptions []ClosedCaption `json:"closedCaptions"`
	HasMediaGroups bool            `json:"hasMediaGroups"`
}

// NewManifest returns a descriptor with empty, non-nil track lists.
func NewManifest(url, normalizedURL string, status Status) *Manifest {
	return &Manifest{
		URL:            url,
		NormalizedURL:  normalizedURL,
		Status:         status,
		Mode:           ModeFull.String(),
		VideoTracks:    []VideoTrack{},
		AudioTracks:    []AudioTrack{},
		SubtitleTracks: []SubtitleTrack{},
		ClosedCaptions: []ClosedCaption{},
	}
}

// OK reports whether the manifest was parsed successfully.
func (m *Manifest) OK() bool {
	return m != nil && m.Status == StatusSuccess
}

// ApplyMetadata copies a metadata block onto the descriptor itself.
func (m *Manifest) ApplyMetadata(md *PlaybackMetadata) {
	if md == nil {
		return
	}
	if md.Duration != nil {
		d := *md.Duration
		m.Duration = &d
	} else {
		m.Duration = nil
	}
	m.IsLive = md.IsLive
	m.IsEncrypted = m.IsEncrypted || md.IsEncrypted
	if md.EncryptionMethod != "" {
		m.EncryptionMethod = md.EncryptionMethod
	}
	if len(md.DRMSystems) > 0 {
		m.DRMSystems = append([]string(nil), md.DRMSystems...)
	}
	m.SegmentCount = md.SegmentCount
}

// Clone returns a deep copy so cached entries are never shared.
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}
	c := *m
	if m.Duration != nil {
		d := *m.Duration
		c.Duration = &d
	}
	if m.DRMSystems != nil {
		c.DRMSystems = append([]string(nil), m.DRMSystems...)
	}

	c.VideoTracks = make([]VideoTrack, len(m.VideoTracks))
	for i, v := range m.VideoTracks {
		v.Metadata = v.Metadata.Clone()
		if v.EstimatedFileSizeBytes != nil {
			n := *v.EstimatedFileSizeBytes
			v.EstimatedFileSizeBytes = &n
		}
		c.VideoTracks[i] = v
	}
	c.AudioTracks = make([]AudioTrack, len(m.AudioTracks))
	for i, a := range m.AudioTracks {
		a.Metadata = a.Metadata.Clone()
		c.AudioTracks[i] = a
	}
	c.SubtitleTracks = make([]SubtitleTrack, len(m.SubtitleTracks))
	for i, s := range m.SubtitleTracks {
		s.Metadata = s.Metadata.Clone()
		c.SubtitleTracks[i] = s
	}
	c.ClosedCaptions = append([]ClosedCaption{}, m.ClosedCaptions...)
	return &c
}

// JSON renders the descriptor as an indented JSON document.
func (m *Manifest) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Resolution represents video dimensions.
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string {
	if r.Width == 0 && r.Height == 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// QualityLabel returns the standardized resolution bucket (e.g., "1080p").
// Portrait video is bucketed by its shorter side.
func (r Resolution) QualityLabel() string {
	h := r.Height
	if r.Width > 0 && r.Width < h {
		h = r.Width
	}
	switch {
	case h >= 2160:
		return "2160p"
	case h >= 1440:
		return "1440p"
	case h >= 1080:
		return "1080p"
	case h >= 720:
		return "720p"
	case h >= 480:
		return "480p"
	case h >= 360:
		return "360p"
	case h >= 240:
		return "240p"
	case h > 0:
		return "144p"
	default:
		return ""
	}
}

// ParseResolution parses a "WIDTHxHEIGHT" attribute value.
func ParseResolution(s string) (Resolution, bool) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Resolution{}, false
	}
	var r Resolution
	if _, err := fmt.Sscanf(w, "%d", &r.Width); err != nil {
		return Resolution{}, false
	}
	if _, err := fmt.Sscanf(h, "%d", &r.Height); err != nil {
		return Resolution{}, false
	}
	return r, true
}
