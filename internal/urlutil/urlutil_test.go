package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		base string
		ref  string
		want string
	}{
		{"relative file", "https://cdn.example.com/v/master.m3u8", "720p/index.m3u8", "https://cdn.example.com/v/720p/index.m3u8"},
		{"parent dir", "https://cdn.example.com/v/a/master.m3u8", "../b/index.m3u8", "https://cdn.example.com/v/b/index.m3u8"},
		{"root relative", "https://cdn.example.com/v/master.m3u8", "/x/index.m3u8", "https://cdn.example.com/x/index.m3u8"},
		{"absolute", "https://cdn.example.com/v/master.m3u8", "https://other.example.com/a.m3u8", "https://other.example.com/a.m3u8"},
		{"base query dropped", "https://cdn.example.com/v/master.m3u8?token=1", "low.m3u8", "https://cdn.example.com/v/low.m3u8"},
		{"ref keeps query", "https://cdn.example.com/v/master.m3u8", "low.m3u8?sig=abc", "https://cdn.example.com/v/low.m3u8?sig=abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.base, tt.ref))
		})
	}
}

func TestBaseDir(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/v/", BaseDir("https://cdn.example.com/v/master.m3u8?x=1"))
	assert.Equal(t, "https://cdn.example.com/", BaseDir("https://cdn.example.com/master.m3u8"))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips cache busters", "https://cdn.example.com/a.m3u8?_=123&cb=9&id=5", "https://cdn.example.com/a.m3u8?id=5"},
		{"strips timestamps", "https://cdn.example.com/a.m3u8?timestamp=1700000000&t=5", "https://cdn.example.com/a.m3u8"},
		{"strips llhls params", "https://cdn.example.com/a.m3u8?_HLS_msn=10&_HLS_part=2", "https://cdn.example.com/a.m3u8"},
		{"sorts query", "https://cdn.example.com/a.m3u8?b=2&a=1", "https://cdn.example.com/a.m3u8?a=1&b=2"},
		{"lowercases host", "https://CDN.Example.com/A.m3u8", "https://cdn.example.com/A.m3u8"},
		{"drops default port", "https://cdn.example.com:443/a.m3u8", "https://cdn.example.com/a.m3u8"},
		{"drops fragment", "https://cdn.example.com/a.m3u8#frag", "https://cdn.example.com/a.m3u8"},
		{"blob untouched", "blob:https://site.example.com/1234-5678", "blob:https://site.example.com/1234-5678"},
		{"data untouched", "data:application/x-mpegurl;base64,AAAA", "data:application/x-mpegurl;base64,AAAA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestIsHTTP(t *testing.T) {
	assert.True(t, IsHTTP("http://a.example.com/x"))
	assert.True(t, IsHTTP("https://a.example.com/x"))
	assert.False(t, IsHTTP("file:///etc/passwd"))
	assert.False(t, IsHTTP("blob:https://a.example.com/1"))
	assert.False(t, IsHTTP("not a url"))
}

func TestExt(t *testing.T) {
	assert.Equal(t, ".m3u8", Ext("https://a.example.com/x/Master.M3U8?x=1"))
	assert.Equal(t, ".mpd", Ext("https://a.example.com/manifest.mpd"))
	assert.Equal(t, "", Ext("https://a.example.com/play"))
}
