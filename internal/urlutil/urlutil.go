// Package urlutil resolves and normalizes manifest and rendition URLs.
package urlutil

import (
	"net/url"
	"path"
	"strings"
)

// volatileParams are query parameters that change between otherwise identical
// requests: cache busters, timestamps, session ids and sequence numbers.
var volatileParams = map[string]bool{
	"_":            true,
	"_t":           true,
	"_ts":          true,
	"cb":           true,
	"cachebust":    true,
	"cachebuster":  true,
	"nocache":      true,
	"rnd":          true,
	"rand":         true,
	"random":       true,
	"t":            true,
	"ts":           true,
	"time":         true,
	"timestamp":    true,
	"session":      true,
	"sessionid":    true,
	"session_id":   true,
	"sid":          true,
	"seq":          true,
	"sequence":     true,
	"segment":      true,
	"_hls_msn":     true,
	"_hls_part":    true,
	"_hls_skip":    true,
	"_hls_push":    true,
}

// IsHTTP returns true if u is a valid URL with scheme http or https.
func IsHTTP(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := strings.ToLower(parsed.Scheme)
	return (s == "http" || s == "https") && parsed.Host != ""
}

// Resolve resolves ref against base. Absolute refs are returned unchanged.
func Resolve(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(rel).String()
}

// BaseDir returns u with its last path segment, query and fragment removed.
func BaseDir(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	dir := path.Dir(parsed.Path)
	if dir == "." {
		dir = "/"
	}
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	parsed.Path = dir
	parsed.RawPath = ""
	return parsed.String()
}

// Normalize strips volatile query parameters so that equivalent URLs compare
// equal. The remaining query is sorted and the fragment dropped. Non-HTTP
// URLs (blob:, data:, file:) are returned unchanged.
func Normalize(u string) string {
	u = strings.TrimSpace(u)
	if !IsHTTP(u) {
		return u
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	switch parsed.Scheme {
	case "http":
		parsed.Host = strings.TrimSuffix(parsed.Host, ":80")
	case "https":
		parsed.Host = strings.TrimSuffix(parsed.Host, ":443")
	}
	parsed.Fragment = ""
	parsed.RawFragment = ""

	if parsed.RawQuery != "" {
		q := parsed.Query()
		for k := range q {
			if volatileParams[strings.ToLower(k)] {
				q.Del(k)
			}
		}
		parsed.RawQuery = q.Encode()
	}
	return parsed.String()
}

// Ext returns the lowercase extension of the URL path (".m3u8", ".mpd", ...).
func Ext(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return strings.ToLower(path.Ext(u))
	}
	return strings.ToLower(path.Ext(parsed.Path))
}
