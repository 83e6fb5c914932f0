package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferContainers(t *testing.T) {
	tests := []struct {
		codecs    string
		wantVideo string
		wantAudio string
	}{
		{"avc1.64001f,mp4a.40.2", ContainerMP4, ContainerM4A},
		{"hvc1.2.4.L123.B0", ContainerMP4, ""},
		{"hev1.1.6.L93.B0,ec-3", ContainerMP4, ContainerM4A},
		{"av01.0.05M.08", ContainerMP4, ""},
		{"vp09.00.10.08,opus", ContainerWebM, ContainerWebM},
		{"vp8,vorbis", ContainerWebM, ContainerWebM},
		{"mp3", "", ContainerMP3},
		{"mpa", "", ContainerMP3},
		{"ac-3", "", ContainerM4A},
		{"dvh1.05.06,ec-3", ContainerMP4, ContainerM4A},
		{"dvhe.05.06", ContainerMP4, ""},
		{"dva1.10.01,mp4a.40.2", ContainerMP4, ContainerM4A},
		{"mp4v.20.9,mp4a.40.2", ContainerMP4, ContainerM4A},
		{"", "", ""},
		{"unknown", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.codecs, func(t *testing.T) {
			assert.Equal(t, tt.wantVideo, InferVideoContainer(tt.codecs))
			assert.Equal(t, tt.wantAudio, InferAudioContainer(tt.codecs))
		})
	}
}

func TestIsAudioOnly(t *testing.T) {
	assert.True(t, IsAudioOnly("mp4a.40.2"))
	assert.True(t, IsAudioOnly("ec-3"))
	assert.False(t, IsAudioOnly("avc1.4d401f,mp4a.40.2"))
	assert.False(t, IsAudioOnly(""))
	assert.False(t, IsAudioOnly("avc1.4d401f"))
	assert.False(t, IsAudioOnly("dvh1.05.06,ec-3"))
	assert.False(t, IsAudioOnly("dvav.09.05,mp4a.40.2"))
}

func TestAudioCodecOf(t *testing.T) {
	assert.Equal(t, "mp4a.40.2", AudioCodecOf("avc1.4d401f, mp4a.40.2"))
	assert.Equal(t, "", AudioCodecOf("avc1.4d401f"))
}

func TestQualityLabel(t *testing.T) {
	tests := []struct {
		res  Resolution
		want string
	}{
		{Resolution{3840, 2160}, "2160p"},
		{Resolution{2560, 1440}, "1440p"},
		{Resolution{1920, 1080}, "1080p"},
		{Resolution{1280, 720}, "720p"},
		{Resolution{854, 480}, "480p"},
		{Resolution{640, 360}, "360p"},
		{Resolution{426, 240}, "240p"},
		{Resolution{256, 144}, "144p"},
		{Resolution{1080, 1920}, "1080p"},
		{Resolution{}, ""},
	}

	for _, tt := range tests {
		if got := tt.res.QualityLabel(); got != tt.want {
			t.Errorf("QualityLabel(%v) = %q, want %q", tt.res, got, tt.want)
		}
	}
}

func TestParseResolution(t *testing.T) {
	r, ok := ParseResolution("1920x1080")
	require.True(t, ok)
	assert.Equal(t, Resolution{1920, 1080}, r)

	_, ok = ParseResolution("garbage")
	assert.False(t, ok)
	_, ok = ParseResolution("axb")
	assert.False(t, ok)
}

func TestNewManifestMarshalsEmptyLists(t *testing.T) {
	m := NewManifest("https://a/b.m3u8", "https://a/b.m3u8", StatusProcessing)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "processing", doc["status"])
	assert.Equal(t, "unknown", doc["format"])
	assert.Nil(t, doc["duration"])
	assert.Equal(t, []any{}, doc["videoTracks"])
	assert.Equal(t, []any{}, doc["audioTracks"])
	assert.Equal(t, []any{}, doc["subtitleTracks"])
	assert.Equal(t, []any{}, doc["closedCaptions"])
}

func TestManifestCloneIsDeep(t *testing.T) {
	d := 12
	m := NewManifest("u", "u", StatusSuccess)
	m.Duration = &d
	m.VideoTracks = append(m.VideoTracks, VideoTrack{URL: "v", Metadata: &PlaybackMetadata{Duration: &d}})

	c := m.Clone()
	*c.Duration = 99
	*c.VideoTracks[0].Metadata.Duration = 99
	c.VideoTracks[0].URL = "changed"

	assert.Equal(t, 12, *m.Duration)
	assert.Equal(t, 12, *m.VideoTracks[0].Metadata.Duration)
	assert.Equal(t, "v", m.VideoTracks[0].URL)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusSuccess, StatusOf(nil))
	assert.Equal(t, StatusParseError, StatusOf(errors.New("boom")))

	cause := errors.New("no header")
	err := NewStatusError(StatusInvalidFormat, cause)
	assert.Equal(t, StatusInvalidFormat, StatusOf(err))
	assert.ErrorIs(t, err, cause)
}

func TestFormatText(t *testing.T) {
	var f Format
	require.NoError(t, f.UnmarshalText([]byte("DASH")))
	assert.Equal(t, FormatDASH, f)
	b, _ := FormatHLS.MarshalText()
	assert.Equal(t, "hls", string(b))
	assert.Equal(t, ModeLight, ParseMode("light"))
	assert.Equal(t, ModeFull, ParseMode(""))
}
