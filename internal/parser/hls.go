package parser

import (
	"bufio"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/mohaanymo/veldscan/internal/models"
)

// HLS tags understood by the grammar.
const (
	tagHeader         = "#EXTM3U"
	tagStreamInf      = "#EXT-X-STREAM-INF:"
	tagMedia          = "#EXT-X-MEDIA:"
	tagKey            = "#EXT-X-KEY:"
	tagSessionKey     = "#EXT-X-SESSION-KEY:"
	tagVersion        = "#EXT-X-VERSION:"
	tagInf            = "#EXTINF:"
	tagEndList        = "#EXT-X-ENDLIST"
	tagTargetDuration = "#EXT-X-TARGETDURATION:"
	tagMediaSequence  = "#EXT-X-MEDIA-SEQUENCE:"
	tagMap            = "#EXT-X-MAP:"
	tagPlaylistType   = "#EXT-X-PLAYLIST-TYPE:"
)

// DefaultHLSVersion applies when #EXT-X-VERSION is absent.
const DefaultHLSVersion = 1

var (
	// ErrMissingHeader is returned for HLS text that does not start with #EXTM3U.
	ErrMissingHeader = errors.New("missing #EXTM3U header")
	// ErrNoEntries is returned for a playlist with neither variants nor segments.
	ErrNoEntries = errors.New("playlist has no variant or segment entries")
)

// StreamInf is one #EXT-X-STREAM-INF declaration closed by its URI line.
type StreamInf struct {
	Bandwidth        int64
	AverageBandwidth int64
	Codecs           string
	Resolution       models.Resolution
	FrameRate        float64
	Audio            string
	Video            string
	Subtitles        string
	ClosedCaptions   string
	URI              string
	Attrs            Attributes
}

// Media is one #EXT-X-MEDIA declaration.
type Media struct {
	Type       string
	GroupID    string
	Name       string
	Language   string
	URI        string
	InstreamID string
	Channels   string
	Default    bool
	Autoselect bool
	Forced     bool
	Attrs      Attributes
}

// Key is one #EXT-X-KEY or #EXT-X-SESSION-KEY declaration.
type Key struct {
	Method    string
	URI       string
	IV        string
	KeyFormat string
}

// Encrypts reports whether the key actually encrypts media.
func (k Key) Encrypts() bool {
	return k.Method != "" && !strings.EqualFold(k.Method, "NONE")
}

// Map is the #EXT-X-MAP init segment declaration.
type Map struct {
	URI       string
	ByteRange string
}

// Segment is one #EXTINF entry.
type Segment struct {
	Duration    float64
	HasDuration bool
	Title       string
	URI         string
}

// TagSet records which classification-relevant tags were seen.
type TagSet struct {
	StreamInf      bool
	ExtInf         bool
	TargetDuration bool
	MediaSequence  bool
	Version        bool
	Media          bool
}

// Playlist is the record stream of one HLS document. URIs are left unresolved.
type Playlist struct {
	Version         int
	VersionDeclared bool
	Streams         []StreamInf
	Media           []Media
	Keys            []Key
	SessionKeys     []Key
	Map             *Map
	Segments        []Segment
	TargetDuration  float64
	MediaSequence   int64
	PlaylistType    string
	EndList         bool
	Tags            TagSet
}

// ParseHLS tokenizes HLS text into records. Numeric fields that fail to parse
// are treated as absent. Text not starting with #EXTM3U yields ErrMissingHeader.
func ParseHLS(content string) (*Playlist, error) {
	pl := &Playlist{Version: DefaultHLSVersion}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		pendingStream  *StreamInf
		pendingSegment = -1
		sawHeader      bool
		first          = true
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			line = strings.TrimPrefix(line, "\ufeff")
			if !strings.HasPrefix(line, tagHeader) {
				return nil, ErrMissingHeader
			}
			sawHeader = true
			continue
		}

		switch {
		case strings.HasPrefix(line, tagStreamInf):
			pl.Tags.StreamInf = true
			s := parseStreamInf(ParseAttributes(strings.TrimPrefix(line, tagStreamInf)))
			pendingStream = &s

		case strings.HasPrefix(line, tagMedia):
			pl.Tags.Media = true
			pl.Media = append(pl.Media, parseMedia(ParseAttributes(strings.TrimPrefix(line, tagMedia))))

		case strings.HasPrefix(line, tagKey):
			pl.Keys = append(pl.Keys, parseKey(ParseAttributes(strings.TrimPrefix(line, tagKey))))

		case strings.HasPrefix(line, tagSessionKey):
			pl.SessionKeys = append(pl.SessionKeys, parseKey(ParseAttributes(strings.TrimPrefix(line, tagSessionKey))))

		case strings.HasPrefix(line, tagVersion):
			pl.Tags.Version = true
			if v, ok := parseInt(strings.TrimPrefix(line, tagVersion)); ok && v > 0 {
				pl.Version = int(v)
				pl.VersionDeclared = true
			}

		case strings.HasPrefix(line, tagInf):
			pl.Tags.ExtInf = true
			pl.Segments = append(pl.Segments, parseExtInf(strings.TrimPrefix(line, tagInf)))
			pendingSegment = len(pl.Segments) - 1

		case strings.HasPrefix(line, tagTargetDuration):
			pl.Tags.TargetDuration = true
			if v, ok := parseFloat(strings.TrimPrefix(line, tagTargetDuration)); ok {
				pl.TargetDuration = v
			}

		case strings.HasPrefix(line, tagMediaSequence):
			pl.Tags.MediaSequence = true
			if v, ok := parseInt(strings.TrimPrefix(line, tagMediaSequence)); ok {
				pl.MediaSequence = v
			}

		case strings.HasPrefix(line, tagMap):
			attrs := ParseAttributes(strings.TrimPrefix(line, tagMap))
			if uri := attrs.Value("URI"); uri != "" {
				pl.Map = &Map{URI: uri, ByteRange: attrs.Value("BYTERANGE")}
			}

		case strings.HasPrefix(line, tagPlaylistType):
			pl.PlaylistType = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(line, tagPlaylistType)))

		case line == tagEndList:
			pl.EndList = true

		case strings.HasPrefix(line, "#"):
			// unknown tag or comment

		default:
			switch {
			case pendingStream != nil:
				pendingStream.URI = line
				pl.Streams = append(pl.Streams, *pendingStream)
				pendingStream = nil
			case pendingSegment >= 0:
				pl.Segments[pendingSegment].URI = line
				pendingSegment = -1
			}
		}
	}

	if !sawHeader {
		return nil, ErrMissingHeader
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pl, nil
}

// Summary computes the metadata block described by this playlist: rounded
// duration (nil when live or unknown), live flag, first effective key.
func (p *Playlist) Summary() *models.PlaybackMetadata {
	md := &models.PlaybackMetadata{
		IsLive:       !p.EndList,
		Version:      p.Version,
		SegmentCount: len(p.Segments),
	}

	if p.EndList {
		var total float64
		for _, s := range p.Segments {
			if s.HasDuration {
				total += s.Duration
			}
		}
		if total > 0 {
			d := int(math.Round(total))
			md.Duration = &d
		}
	}

	if k, ok := p.FirstKey(); ok {
		md.IsEncrypted = true
		md.EncryptionMethod = k.Method
	}
	return md
}

// ScanVersion reads #EXT-X-VERSION from raw text without running the grammar.
func ScanVersion(content string) int {
	i := strings.Index(content, tagVersion)
	if i < 0 {
		return DefaultHLSVersion
	}
	rest := content[i+len(tagVersion):]
	if j := strings.IndexAny(rest, "\r\n"); j >= 0 {
		rest = rest[:j]
	}
	if v, ok := parseInt(rest); ok && v > 0 {
		return int(v)
	}
	return DefaultHLSVersion
}

// FirstKey returns the first #EXT-X-KEY that encrypts media.
func (p *Playlist) FirstKey() (Key, bool) {
	for _, k := range p.Keys {
		if k.Encrypts() {
			return k, true
		}
	}
	return Key{}, false
}

// FirstSessionKey returns the first #EXT-X-SESSION-KEY that encrypts media.
func (p *Playlist) FirstSessionKey() (Key, bool) {
	for _, k := range p.SessionKeys {
		if k.Encrypts() {
			return k, true
		}
	}
	return Key{}, false
}

func parseStreamInf(attrs Attributes) StreamInf {
	s := StreamInf{
		Codecs:         attrs.Value("CODECS"),
		Audio:          attrs.Value("AUDIO"),
		Video:          attrs.Value("VIDEO"),
		Subtitles:      attrs.Value("SUBTITLES"),
		ClosedCaptions: attrs.Value("CLOSED-CAPTIONS"),
		Attrs:          attrs,
	}
	if v, ok := parseInt(attrs.Value("BANDWIDTH")); ok {
		s.Bandwidth = v
	}
	if v, ok := parseInt(attrs.Value("AVERAGE-BANDWIDTH")); ok {
		s.AverageBandwidth = v
	}
	if r, ok := models.ParseResolution(attrs.Value("RESOLUTION")); ok {
		s.Resolution = r
	}
	if v, ok := parseFloat(attrs.Value("FRAME-RATE")); ok {
		s.FrameRate = v
	}
	if strings.EqualFold(s.ClosedCaptions, "NONE") {
		s.ClosedCaptions = ""
	}
	return s
}

func parseMedia(attrs Attributes) Media {
	return Media{
		Type:       strings.ToUpper(attrs.Value("TYPE")),
		GroupID:    attrs.Value("GROUP-ID"),
		Name:       attrs.Value("NAME"),
		Language:   attrs.Value("LANGUAGE"),
		URI:        attrs.Value("URI"),
		InstreamID: attrs.Value("INSTREAM-ID"),
		Channels:   attrs.Value("CHANNELS"),
		Default:    attrs.Bool("DEFAULT"),
		Autoselect: attrs.Bool("AUTOSELECT"),
		Forced:     attrs.Bool("FORCED"),
		Attrs:      attrs,
	}
}

func parseKey(attrs Attributes) Key {
	return Key{
		Method:    attrs.Value("METHOD"),
		URI:       attrs.Value("URI"),
		IV:        attrs.Value("IV"),
		KeyFormat: attrs.Value("KEYFORMAT"),
	}
}

func parseExtInf(s string) Segment {
	durStr, title, _ := strings.Cut(s, ",")
	seg := Segment{Title: strings.TrimSpace(title)}
	if d, ok := parseFloat(durStr); ok && d >= 0 {
		seg.Duration = d
		seg.HasDuration = true
	}
	return seg
}

func parseInt(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
