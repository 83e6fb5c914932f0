package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohaanymo/veldscan/internal/models"
)

func TestClassifyHLSLight(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantMaster bool
		wantScore  float64
	}{
		{"master", masterPlaylist, true, 0.6},
		{"vod variant", vodPlaylist, false, -1.5},
		{"live variant", livePlaylist, false, -1.4},
		{"bare stream-inf", "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1\nv.m3u8\n", true, 0.5},
		{"version only", "#EXTM3U\n#EXT-X-VERSION:3\n", true, 0.1},
		{"empty", "#EXTM3U\n", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ClassifyHLSLight(tt.content)
			assert.Equal(t, tt.wantMaster, c.IsMaster)
			assert.Equal(t, !tt.wantMaster, c.IsVariant)
			assert.InDelta(t, tt.wantScore, c.Confidence, 0.0001)
		})
	}
}

func TestClassifyHLSStrict(t *testing.T) {
	t.Run("stream-inf without extinf is master", func(t *testing.T) {
		pl, err := ParseHLS(masterPlaylist)
		require.NoError(t, err)
		c := ClassifyHLS(pl)
		assert.True(t, c.IsMaster)
		assert.False(t, c.IsVariant)
	})

	t.Run("extinf without stream-inf is variant", func(t *testing.T) {
		pl, err := ParseHLS(vodPlaylist)
		require.NoError(t, err)
		c := ClassifyHLS(pl)
		assert.False(t, c.IsMaster)
		assert.True(t, c.IsVariant)
	})

	t.Run("neither tag", func(t *testing.T) {
		pl, err := ParseHLS("#EXTM3U\n#EXT-X-VERSION:3\n")
		require.NoError(t, err)
		c := ClassifyHLS(pl)
		assert.False(t, c.IsMaster)
		assert.False(t, c.IsVariant)
	})
}

// A playlist carrying both #EXT-X-STREAM-INF and #EXTINF segments is
// malformed. The heuristic scores it as a variant; the strict check that
// runs on parsed content treats it as a master and takes precedence.
func TestClassifyHLSAmbiguous(t *testing.T) {
	content := `#EXTM3U
#EXT-X-TARGETDURATION:4
#EXT-X-STREAM-INF:BANDWIDTH=800000
v.m3u8
#EXTINF:4.0,
seg0.ts
`
	light := ClassifyHLSLight(content)
	assert.False(t, light.IsMaster)

	pl, err := ParseHLS(content)
	require.NoError(t, err)
	strict := ClassifyHLS(pl)
	assert.True(t, strict.IsMaster)
	assert.False(t, strict.IsVariant)
}

func TestClassifyDASH(t *testing.T) {
	mpd, err := ParseDASH(basicMPD)
	require.NoError(t, err)
	assert.True(t, ClassifyDASH(mpd).IsMaster)

	empty := &MPD{Periods: []Period{{AdaptationSets: []AdaptationSet{{MimeType: "video/mp4"}}}}}
	assert.False(t, ClassifyDASH(empty).IsMaster)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		url     string
		content string
		want    models.Format
	}{
		{"https://a.example.com/x", "#EXTM3U\n", models.FormatHLS},
		{"https://a.example.com/x", "\n\n  #EXTM3U\n", models.FormatHLS},
		{"https://a.example.com/x", basicMPD, models.FormatDASH},
		{"https://a.example.com/x.m3u8", "<html>nope</html>", models.FormatHLS},
		{"https://a.example.com/x.mpd", "garbage", models.FormatDASH},
		{"https://a.example.com/x.json", `{"a":1}`, models.FormatUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectFormat(tt.url, tt.content), "%s", tt.url)
	}
}
