package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAttributes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Attributes
	}{
		{
			name:  "plain",
			input: "BANDWIDTH=1280000,RESOLUTION=1280x720",
			want: Attributes{
				{Key: "BANDWIDTH", Val: "1280000"},
				{Key: "RESOLUTION", Val: "1280x720"},
			},
		},
		{
			name:  "quoted comma does not split",
			input: `BANDWIDTH=1,CODECS="avc1.4d401f,mp4a.40.2",AUDIO="aac"`,
			want: Attributes{
				{Key: "BANDWIDTH", Val: "1"},
				{Key: "CODECS", Val: "avc1.4d401f,mp4a.40.2", Quoted: true},
				{Key: "AUDIO", Val: "aac", Quoted: true},
			},
		},
		{
			name:  "equals inside quotes",
			input: `URI="key?a=1&b=2",METHOD=AES-128`,
			want: Attributes{
				{Key: "URI", Val: "key?a=1&b=2", Quoted: true},
				{Key: "METHOD", Val: "AES-128"},
			},
		},
		{
			name:  "unterminated quote runs to end",
			input: `NAME="broken, value`,
			want: Attributes{
				{Key: "NAME", Val: "broken, value", Quoted: true},
			},
		},
		{
			name:  "bare token ignored",
			input: "FOO,BAR=1",
			want: Attributes{
				{Key: "BAR", Val: "1"},
			},
		},
		{
			name:  "empty value",
			input: "A=,B=2",
			want: Attributes{
				{Key: "A", Val: ""},
				{Key: "B", Val: "2"},
			},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAttributes(tt.input))
		})
	}
}

func TestAttributesLookup(t *testing.T) {
	attrs := ParseAttributes(`DEFAULT=YES,AUTOSELECT=no,NAME="x"`)

	assert.True(t, attrs.Bool("DEFAULT"))
	assert.False(t, attrs.Bool("AUTOSELECT"))
	assert.False(t, attrs.Bool("FORCED"))
	assert.Equal(t, "x", attrs.Value("NAME"))

	_, ok := attrs.Get("name")
	assert.False(t, ok, "lookups are case-sensitive")
}
