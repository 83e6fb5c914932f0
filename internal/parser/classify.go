package parser

import (
	"math"
	"regexp"
	"strings"
)

// Classification is the master/variant verdict for one document.
type Classification struct {
	IsMaster   bool
	IsVariant  bool
	Confidence float64
}

// Heuristic weights for light HLS detection.
const (
	weightStreamInf      = 0.5
	weightExtInf         = -0.5
	weightTargetDuration = -0.4
	weightMediaSequence  = -0.3
	weightVersion        = 0.1
	weightSegmentExt     = -0.3
)

var reSegmentExt = regexp.MustCompile(`(?i)\.(?:ts|aac|mp4)(?:[?#\s]|$)`)

// ClassifyHLSLight scores raw HLS text without running the full grammar.
// Only used before the full content has been parsed.
func ClassifyHLSLight(content string) Classification {
	var score float64
	if strings.Contains(content, "#EXT-X-STREAM-INF") {
		score += weightStreamInf
	}
	if strings.Contains(content, "#EXTINF") {
		score += weightExtInf
	}
	if strings.Contains(content, "#EXT-X-TARGETDURATION") {
		score += weightTargetDuration
	}
	if strings.Contains(content, "#EXT-X-MEDIA-SEQUENCE") {
		score += weightMediaSequence
	}
	if strings.Contains(content, "#EXT-X-VERSION") {
		score += weightVersion
	}
	if hasSegmentURI(content) {
		score += weightSegmentExt
	}

	// Avoid float drift such as 0.6-0.5 = 0.09999999999999998 in reported scores.
	score = math.Round(score*100) / 100
	return Classification{
		IsMaster:   score > 0,
		IsVariant:  score <= 0,
		Confidence: score,
	}
}

// hasSegmentURI looks for segment-like file extensions on URI lines.
func hasSegmentURI(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if reSegmentExt.MatchString(line) {
			return true
		}
	}
	return false
}

// ClassifyHLS is the strict check applied once the playlist is parsed: a
// master has at least one #EXT-X-STREAM-INF, a variant has none and at least
// one #EXTINF. A playlist with both is a master.
func ClassifyHLS(pl *Playlist) Classification {
	c := Classification{}
	switch {
	case pl.Tags.StreamInf:
		c.IsMaster = true
		c.Confidence = 1
	case pl.Tags.ExtInf:
		c.IsVariant = true
		c.Confidence = 1
	}
	return c
}

// ClassifyDASH treats an MPD as a master when any adaptation set carries at
// least one representation.
func ClassifyDASH(mpd *MPD) Classification {
	if mpd.RepresentationCount() > 0 {
		return Classification{IsMaster: true, Confidence: 1}
	}
	return Classification{}
}
