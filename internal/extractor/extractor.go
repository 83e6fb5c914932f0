// Package extractor turns parsed playlist records into normalized renditions.
package extractor

import (
	"fmt"
	"sort"

	"github.com/mohaanymo/veldscan/internal/models"
	"github.com/mohaanymo/veldscan/internal/urlutil"
)

// Renditions is the extracted rendition set of one master manifest.
type Renditions struct {
	Video          []models.VideoTrack
	Audio          []models.AudioTrack
	Subtitles      []models.SubtitleTrack
	ClosedCaptions []models.ClosedCaption
	HasMediaGroups bool
}

// Apply copies the rendition lists onto m. Nil lists become empty ones.
func (r *Renditions) Apply(m *models.Manifest) {
	m.VideoTracks = append([]models.VideoTrack{}, r.Video...)
	m.AudioTracks = append([]models.AudioTrack{}, r.Audio...)
	m.SubtitleTracks = append([]models.SubtitleTrack{}, r.Subtitles...)
	m.ClosedCaptions = append([]models.ClosedCaption{}, r.ClosedCaptions...)
	m.HasMediaGroups = r.HasMediaGroups
}

// Len returns the number of fetchable renditions.
func (r *Renditions) Len() int {
	return len(r.Video) + len(r.Audio) + len(r.Subtitles)
}

// SetMasterURL records the owning master on every video rendition.
func (r *Renditions) SetMasterURL(masterURL string) {
	for i := range r.Video {
		r.Video[i].MasterURL = masterURL
	}
}

// resolver resolves rendition URIs against the manifest's base directory.
type resolver struct {
	base string
}

func newResolver(manifestURL string) resolver {
	return resolver{base: urlutil.BaseDir(manifestURL)}
}

func (r resolver) resolve(ref string) (string, string) {
	u := urlutil.Resolve(r.base, ref)
	return u, urlutil.Normalize(u)
}

// sortVideo orders video renditions by descending effective bandwidth.
// Ties keep manifest order.
func sortVideo(tracks []models.VideoTrack) {
	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].EffectiveBandwidth() > tracks[j].EffectiveBandwidth()
	})
}

// dedupVideo drops renditions whose normalized URL was already seen, keeping
// the one with the higher effective bandwidth.
func dedupVideo(tracks []models.VideoTrack) []models.VideoTrack {
	index := make(map[string]int, len(tracks))
	out := tracks[:0]
	for _, t := range tracks {
		if i, ok := index[t.NormalizedURL]; ok {
			if t.EffectiveBandwidth() > out[i].EffectiveBandwidth() {
				out[i] = t
			}
			continue
		}
		index[t.NormalizedURL] = len(out)
		out = append(out, t)
	}
	return out
}

func videoID(height int, bandwidth int64) string {
	return fmt.Sprintf("video_%d_%d", height, bandwidth)
}

func mediaID(groupID, language, name string) string {
	return fmt.Sprintf("%s_%s_%s", groupID, language, name)
}
