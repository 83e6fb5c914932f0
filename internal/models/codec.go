package models

import "strings"

// Container names inferred from codec strings.
const (
	ContainerMP4  = "mp4"
	ContainerWebM = "webm"
	ContainerM4A  = "m4a"
	ContainerMP3  = "mp3"
	ContainerVTT  = "vtt"
	ContainerTTML = "ttml"
)

// Codec detection tables. Order matters: the first matching rule wins.
var (
	videoContainerRules = []struct {
		needles   []string
		container string
	}{
		{[]string{"vp8", "vp08", "vp9", "vp09"}, ContainerWebM},
		{[]string{"avc1", "hvc1", "hev1", "av01", "dvh1", "dvhe", "dva1", "dvav", "mp4v"}, ContainerMP4},
	}
	audioContainerRules = []struct {
		needles   []string
		container string
	}{
		{[]string{"mp3", "mpa"}, ContainerMP3},
		{[]string{"opus", "vorbis"}, ContainerWebM},
		{[]string{"mp4a", "aac", "ac-3", "ec-3"}, ContainerM4A},
	}

	audioCodecs    = []string{"mp4a", "aac", "ac-3", "ec-3", "opus", "vorbis", "flac", "mp3", "mpa"}
	videoCodecs    = []string{"avc", "h264", "hevc", "h265", "hvc1", "hev1", "vp8", "vp08", "vp9", "vp09", "av01", "av1", "dvh1", "dvhe", "dva1", "dvav", "mp4v"}
	subtitleCodecs = []string{"stpp", "wvtt", "ttml", "webvtt", "vtt", "srt"}
)

// InferVideoContainer maps a codec string to a video container, or "".
func InferVideoContainer(codecs string) string {
	return matchRules(codecs, videoContainerRules)
}

// InferAudioContainer maps a codec string to an audio container, or "".
func InferAudioContainer(codecs string) string {
	return matchRules(codecs, audioContainerRules)
}

// InferSubtitleContainer maps a subtitle codec or mime type to a container.
func InferSubtitleContainer(codecsOrMime string) string {
	lower := strings.ToLower(codecsOrMime)
	switch {
	case strings.Contains(lower, "stpp"), strings.Contains(lower, "ttml"):
		return ContainerTTML
	default:
		return ContainerVTT
	}
}

func matchRules(codecs string, rules []struct {
	needles   []string
	container string
}) string {
	lower := strings.ToLower(codecs)
	if lower == "" {
		return ""
	}
	for _, r := range rules {
		for _, n := range r.needles {
			if strings.Contains(lower, n) {
				return r.container
			}
		}
	}
	return ""
}

// HasAudioCodec reports whether a codec string names an audio codec.
func HasAudioCodec(codec string) bool { return containsAny(codec, audioCodecs) }

// HasVideoCodec reports whether a codec string names a video codec.
func HasVideoCodec(codec string) bool { return containsAny(codec, videoCodecs) }

// HasSubtitleCodec reports whether a codec string names a subtitle codec.
func HasSubtitleCodec(codec string) bool { return containsAny(codec, subtitleCodecs) }

// IsAudioOnly reports a codec list with audio codecs and no video codec.
func IsAudioOnly(codecs string) bool {
	return codecs != "" && HasAudioCodec(codecs) && !HasVideoCodec(codecs)
}

// AudioCodecOf returns the first audio entry of a comma separated codec list.
func AudioCodecOf(codecs string) string {
	for _, c := range strings.Split(codecs, ",") {
		c = strings.TrimSpace(c)
		if HasAudioCodec(c) && !HasVideoCodec(c) {
			return c
		}
	}
	return ""
}

func containsAny(s string, needles []string) bool {
	s = strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
