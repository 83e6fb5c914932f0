package extractor

import (
	"github.com/mohaanymo/veldscan/internal/models"
	"github.com/mohaanymo/veldscan/internal/parser"
	"github.com/mohaanymo/veldscan/internal/urlutil"
)

// Media types of #EXT-X-MEDIA.
const (
	mediaAudio          = "AUDIO"
	mediaSubtitles      = "SUBTITLES"
	mediaClosedCaptions = "CLOSED-CAPTIONS"
)

// ExtractHLS builds the rendition set of an HLS master playlist fetched from
// manifestURL. Audio-only variant streams are reported as audio renditions.
func ExtractHLS(manifestURL string, pl *parser.Playlist) *Renditions {
	res := newResolver(manifestURL)
	r := &Renditions{HasMediaGroups: len(pl.Media) > 0}

	var audioOnly []models.AudioTrack
	for _, s := range pl.Streams {
		u, norm := res.resolve(s.URI)

		if models.IsAudioOnly(s.Codecs) {
			audioOnly = append(audioOnly, models.AudioTrack{
				ID:            mediaID(s.Audio, "", "stream"),
				GroupID:       s.Audio,
				URL:           u,
				NormalizedURL: norm,
				Codecs:        s.Codecs,
				Bandwidth:     s.Bandwidth,
				Container:     orDefault(models.InferAudioContainer(s.Codecs), models.ContainerM4A),
			})
			continue
		}

		v := models.VideoTrack{
			ID:                     videoID(s.Resolution.Height, s.Bandwidth),
			URL:                    u,
			NormalizedURL:          norm,
			Bandwidth:              s.Bandwidth,
			AverageBandwidth:       s.AverageBandwidth,
			Codecs:                 s.Codecs,
			Width:                  s.Resolution.Width,
			Height:                 s.Resolution.Height,
			StandardizedResolution: s.Resolution.QualityLabel(),
			FPS:                    s.FrameRate,
			AudioGroupID:           s.Audio,
			VideoGroupID:           s.Video,
			SubtitleGroupID:        s.Subtitles,
			CCGroupID:              s.ClosedCaptions,
		}
		if s.Codecs == "" {
			v.VideoContainer = models.ContainerMP4
			v.AudioContainer = models.ContainerM4A
		} else {
			v.VideoContainer = models.InferVideoContainer(s.Codecs)
			v.AudioContainer = models.InferAudioContainer(s.Codecs)
		}
		r.Video = append(r.Video, v)
	}

	r.Video = dedupVideo(r.Video)
	sortVideo(r.Video)

	for _, m := range pl.Media {
		switch m.Type {
		case mediaAudio:
			if a, ok := hlsAudio(res, m, r.Video); ok {
				r.Audio = append(r.Audio, a)
			}
		case mediaSubtitles:
			if m.URI == "" {
				continue
			}
			u, norm := res.resolve(m.URI)
			r.Subtitles = append(r.Subtitles, models.SubtitleTrack{
				ID:            mediaID(m.GroupID, m.Language, m.Name),
				GroupID:       m.GroupID,
				Name:          m.Name,
				Language:      m.Language,
				URL:           u,
				NormalizedURL: norm,
				Default:       m.Default,
				Autoselect:    m.Autoselect,
				Forced:        m.Forced,
				Container:     models.InferSubtitleContainer(urlutil.Ext(u)),
			})
		case mediaClosedCaptions:
			r.ClosedCaptions = append(r.ClosedCaptions, models.ClosedCaption{
				GroupID:    m.GroupID,
				Name:       m.Name,
				Language:   m.Language,
				InstreamID: m.InstreamID,
				Default:    m.Default,
				Autoselect: m.Autoselect,
			})
		}
	}

	r.Audio = append(r.Audio, audioOnly...)
	return r
}

// hlsAudio converts an AUDIO media record. A record without URI is carried
// inside the first (highest bandwidth) video rendition of its group; with no
// such rendition it is dropped.
func hlsAudio(res resolver, m parser.Media, videos []models.VideoTrack) (models.AudioTrack, bool) {
	a := models.AudioTrack{
		ID:         mediaID(m.GroupID, m.Language, m.Name),
		GroupID:    m.GroupID,
		Name:       m.Name,
		Language:   m.Language,
		Channels:   m.Channels,
		Default:    m.Default,
		Autoselect: m.Autoselect,
		Container:  models.ContainerM4A,
	}

	owner := -1
	for i := range videos {
		if m.GroupID != "" && videos[i].AudioGroupID == m.GroupID {
			owner = i
			break
		}
	}
	if owner >= 0 {
		codecs := videos[owner].Codecs
		a.Codecs = models.AudioCodecOf(codecs)
		if c := models.InferAudioContainer(codecs); c != "" {
			a.Container = c
		}
	}

	if m.URI != "" {
		a.URL, a.NormalizedURL = res.resolve(m.URI)
		return a, true
	}
	if owner < 0 {
		return models.AudioTrack{}, false
	}

	videos[owner].IsUsedForEmbeddedAudio = true
	a.URL = videos[owner].URL
	a.NormalizedURL = videos[owner].NormalizedURL
	a.IsEmbedded = true
	return a, true
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
