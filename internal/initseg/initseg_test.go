package initseg

import (
	"bytes"
	"testing"

	"github.com/Eyevinn/mp4ff/aac"
	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectClearAudio(t *testing.T) {
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(48000, "audio", "en")
	require.NoError(t, init.Moov.Trak.SetAACDescriptor(aac.AAClc, 48000))

	var buf bytes.Buffer
	require.NoError(t, init.Encode(&buf))

	info, err := Inspect(buf.Bytes())
	require.NoError(t, err)

	require.Len(t, info.Tracks, 1)
	assert.Equal(t, "mp4a", info.Tracks[0].Codec)
	assert.Equal(t, "soun", info.Tracks[0].Handler)
	assert.False(t, info.Protected())
	assert.Empty(t, info.Scheme())
	assert.Equal(t, []string{"mp4a"}, info.Codecs())
}

func TestInspectGarbage(t *testing.T) {
	_, err := Inspect([]byte("#EXTM3U\n"))
	assert.Error(t, err)
}

func TestDescribeProtectedEntry(t *testing.T) {
	entry := mp4.NewAudioSampleEntryBox("enca")
	entry.Sinf = &mp4.SinfBox{
		Frma: &mp4.FrmaBox{DataFormat: "mp4a"},
		Schm: &mp4.SchmBox{SchemeType: "cbcs"},
	}

	track, ok := describeEntry(entry)
	require.True(t, ok)
	assert.True(t, track.Protected)
	assert.Equal(t, "mp4a", track.Codec)
	assert.Equal(t, "cbcs", track.Scheme)

	info := &Info{Tracks: []Track{{Codec: "avc1"}, track}}
	assert.True(t, info.Protected())
	assert.Equal(t, "cbcs", info.Scheme())
	assert.Equal(t, []string{"avc1", "mp4a"}, info.Codecs())
}
