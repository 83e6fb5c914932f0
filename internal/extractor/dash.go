package extractor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mohaanymo/veldscan/internal/models"
	"github.com/mohaanymo/veldscan/internal/parser"
	"github.com/mohaanymo/veldscan/internal/urlutil"
)

type dashKind int

const (
	kindUnknown dashKind = iota
	kindVideo
	kindAudio
	kindText
)

// ExtractDASH builds the rendition set of an MPD fetched from manifestURL.
// BaseURL elements resolve MPD → Period → AdaptationSet → Representation;
// representation attributes win over adaptation set attributes.
func ExtractDASH(manifestURL string, mpd *parser.MPD) *Renditions {
	r := &Renditions{}
	mpdBase := joinBase(manifestURL, mpd.BaseURL)

	for _, period := range mpd.Periods {
		periodBase := joinBase(mpdBase, period.BaseURL)

		for _, as := range period.AdaptationSets {
			asBase := joinBase(periodBase, as.BaseURL)

			for _, rep := range as.Representations {
				codecs := firstNonEmpty(rep.Codecs, as.Codecs)
				bandwidth, _ := parser.ParseNumber(rep.Bandwidth)
				u := representationURL(manifestURL, asBase, as, rep, bandwidth)

				switch classifyAdaptation(as, rep, codecs) {
				case kindVideo:
					r.Video = append(r.Video, dashVideo(as, rep, codecs, bandwidth, u))
				case kindAudio:
					r.Audio = append(r.Audio, dashAudio(as, rep, codecs, bandwidth, u))
				case kindText:
					r.Subtitles = append(r.Subtitles, dashSubtitle(as, rep, codecs, u))
				}
			}
		}
	}

	disambiguateVideo(r.Video)
	sortVideo(r.Video)
	r.HasMediaGroups = len(r.Audio) > 0 || len(r.Subtitles) > 0
	return r
}

func dashVideo(as parser.AdaptationSet, rep parser.Representation, codecs string, bandwidth int64, u string) models.VideoTrack {
	width, _ := parser.ParseNumber(firstNonEmpty(rep.Width, as.Width))
	height, _ := parser.ParseNumber(firstNonEmpty(rep.Height, as.Height))
	fps, _ := parser.ParseFrameRate(firstNonEmpty(rep.FrameRate, as.FrameRate))
	res := models.Resolution{Width: int(width), Height: int(height)}

	return models.VideoTrack{
		ID:                     rep.ID,
		URL:                    u,
		NormalizedURL:          urlutil.Normalize(u),
		Bandwidth:              bandwidth,
		Codecs:                 codecs,
		Width:                  res.Width,
		Height:                 res.Height,
		StandardizedResolution: res.QualityLabel(),
		FPS:                    fps,
		VideoContainer:         models.InferVideoContainer(codecs),
		AudioContainer:         models.InferAudioContainer(codecs),
		VideoGroupID:           as.ID,
	}
}

func dashAudio(as parser.AdaptationSet, rep parser.Representation, codecs string, bandwidth int64, u string) models.AudioTrack {
	a := models.AudioTrack{
		ID:            rep.ID,
		GroupID:       as.ID,
		Name:          as.Label,
		Language:      as.Lang,
		URL:           u,
		NormalizedURL: urlutil.Normalize(u),
		Codecs:        codecs,
		Bandwidth:     bandwidth,
		Container:     models.InferAudioContainer(codecs),
		Default:       hasRole(as, "main"),
	}
	if rep.AudioChannelConfiguration != nil {
		a.Channels = rep.AudioChannelConfiguration.Value
	}
	return a
}

func dashSubtitle(as parser.AdaptationSet, rep parser.Representation, codecs, u string) models.SubtitleTrack {
	mime := firstNonEmpty(rep.MimeType, as.MimeType)
	return models.SubtitleTrack{
		ID:            rep.ID,
		GroupID:       as.ID,
		Name:          as.Label,
		Language:      as.Lang,
		URL:           u,
		NormalizedURL: urlutil.Normalize(u),
		Codecs:        codecs,
		Default:       hasRole(as, "main"),
		Forced:        hasRole(as, "forced-subtitle"),
		Container:     models.InferSubtitleContainer(codecs + " " + mime),
	}
}

// classifyAdaptation decides the rendition kind from mime/content type,
// falling back to the codec string.
func classifyAdaptation(as parser.AdaptationSet, rep parser.Representation, codecs string) dashKind {
	for _, t := range []string{as.ContentType, as.MimeType, rep.MimeType} {
		t = strings.ToLower(t)
		switch {
		case strings.HasPrefix(t, "video"):
			return kindVideo
		case strings.HasPrefix(t, "audio"):
			return kindAudio
		case strings.HasPrefix(t, "text"), strings.Contains(t, "ttml"), strings.Contains(t, "vtt"):
			return kindText
		}
	}
	switch {
	case models.HasVideoCodec(codecs):
		return kindVideo
	case models.HasSubtitleCodec(codecs):
		return kindText
	case models.HasAudioCodec(codecs):
		return kindAudio
	case hasRole(as, "subtitle"), hasRole(as, "caption"):
		return kindText
	}
	return kindUnknown
}

// representationURL picks the most specific fetchable URL: the
// representation's BaseURL, then its initialization template, then the
// adaptation set's BaseURL, then the manifest itself.
func representationURL(manifestURL, asBase string, as parser.AdaptationSet, rep parser.Representation, bandwidth int64) string {
	if rep.BaseURL != "" {
		return urlutil.Resolve(asBase, rep.BaseURL)
	}
	tmpl := rep.SegmentTemplate
	if tmpl == nil || tmpl.Initialization == "" {
		tmpl = as.SegmentTemplate
	}
	if tmpl != nil && tmpl.Initialization != "" {
		return urlutil.Resolve(asBase, expandTemplate(tmpl.Initialization, rep.ID, bandwidth))
	}
	if as.BaseURL != "" {
		return asBase
	}
	return manifestURL
}

var reTemplateVar = regexp.MustCompile(`\$(RepresentationID|Bandwidth)(%0?\d*d)?\$`)

// expandTemplate substitutes the identifiers that are fixed per
// representation. Segment-level identifiers are left untouched.
func expandTemplate(tmpl, repID string, bandwidth int64) string {
	out := reTemplateVar.ReplaceAllStringFunc(tmpl, func(m string) string {
		sub := reTemplateVar.FindStringSubmatch(m)
		if sub[1] == "RepresentationID" {
			return repID
		}
		if sub[2] != "" {
			return fmt.Sprintf(sub[2], bandwidth)
		}
		return strconv.FormatInt(bandwidth, 10)
	})
	return strings.ReplaceAll(out, "$$", "$")
}

// disambiguateVideo keeps normalized URLs unique when several
// representations resolve to the same URL (a shared BaseURL or none at all).
func disambiguateVideo(tracks []models.VideoTrack) {
	seen := make(map[string]bool, len(tracks))
	for i := range tracks {
		n := tracks[i].NormalizedURL
		if seen[n] {
			n = n + "#" + tracks[i].ID
			if seen[n] {
				n = fmt.Sprintf("%s-%d", n, i)
			}
			tracks[i].NormalizedURL = n
		}
		seen[n] = true
	}
}

func joinBase(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return base
	}
	return urlutil.Resolve(base, ref)
}

func hasRole(as parser.AdaptationSet, value string) bool {
	for _, r := range as.Roles {
		if strings.EqualFold(r.Value, value) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
