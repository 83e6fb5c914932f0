// Package initseg inspects fragmented MP4 initialization segments.
package initseg

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/Eyevinn/mp4ff/mp4"
)

var (
	// ErrNoInit is returned when the data holds no moov box.
	ErrNoInit = errors.New("no init segment found")
)

// Track describes one sample entry of an init segment.
type Track struct {
	Handler    string // vide, soun, text, subt
	Codec      string // original fourcc, e.g. avc1 for an encv entry
	Protected  bool
	Scheme     string // cenc, cbcs, ...
	DefaultKID string // hex
}

// Info is the summary of an init segment.
type Info struct {
	Tracks []Track
}

// Codecs returns the distinct codec fourccs in track order.
func (i *Info) Codecs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range i.Tracks {
		if t.Codec != "" && !seen[t.Codec] {
			seen[t.Codec] = true
			out = append(out, t.Codec)
		}
	}
	return out
}

// Protected reports whether any track carries a protection scheme.
func (i *Info) Protected() bool {
	for _, t := range i.Tracks {
		if t.Protected {
			return true
		}
	}
	return false
}

// Scheme returns the first protection scheme found, or "".
func (i *Info) Scheme() string {
	for _, t := range i.Tracks {
		if t.Scheme != "" {
			return t.Scheme
		}
	}
	return ""
}

// Inspect decodes data as an init segment and reports its sample entries.
func Inspect(data []byte) (*Info, error) {
	f, err := mp4.DecodeFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode init segment: %w", err)
	}
	if f.Init == nil || f.Init.Moov == nil {
		return nil, ErrNoInit
	}
	return inspectInit(f.Init), nil
}

func inspectInit(init *mp4.InitSegment) *Info {
	info := &Info{}
	for _, trak := range init.Moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
			continue
		}
		stsd := trak.Mdia.Minf.Stbl.Stsd
		if stsd == nil {
			continue
		}

		handler := ""
		if trak.Mdia.Hdlr != nil {
			handler = trak.Mdia.Hdlr.HandlerType
		}
		for _, child := range stsd.Children {
			t, ok := describeEntry(child)
			if !ok {
				continue
			}
			t.Handler = handler
			info.Tracks = append(info.Tracks, t)
		}
	}
	return info
}

// describeEntry reads the codec and protection data of one stsd child.
func describeEntry(box mp4.Box) (Track, bool) {
	var sinf *mp4.SinfBox
	switch entry := box.(type) {
	case *mp4.VisualSampleEntryBox:
		sinf = entry.Sinf
	case *mp4.AudioSampleEntryBox:
		sinf = entry.Sinf
	default:
		if box == nil {
			return Track{}, false
		}
		return Track{Codec: box.Type()}, true
	}

	t := Track{Codec: box.Type()}
	if sinf == nil {
		return t, true
	}

	t.Protected = true
	if sinf.Frma != nil && sinf.Frma.DataFormat != "" {
		t.Codec = sinf.Frma.DataFormat
	}
	if sinf.Schm != nil {
		t.Scheme = strings.TrimSpace(sinf.Schm.SchemeType)
	}
	if sinf.Schi != nil && sinf.Schi.Tenc != nil {
		t.DefaultKID = hex.EncodeToString(sinf.Schi.Tenc.DefaultKID)
	}
	return t, true
}
