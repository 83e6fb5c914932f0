// Package parser provides the tag and attribute grammars for HLS and DASH
// manifests, format detection and master/variant classification.
package parser

import (
	"strings"

	"github.com/mohaanymo/veldscan/internal/models"
)

// CanParseHLS checks if the URL looks like an HLS manifest.
func CanParseHLS(urlStr string) bool {
	lower := strings.ToLower(urlStr)
	return strings.Contains(lower, ".m3u8") || strings.Contains(lower, "format=m3u8")
}

// CanParseDASH checks if the URL looks like a DASH manifest.
func CanParseDASH(urlStr string) bool {
	lower := strings.ToLower(urlStr)
	return strings.Contains(lower, ".mpd") || strings.Contains(lower, "format=mpd")
}

// DetectFormat decides which grammar applies to content fetched from urlStr.
// Content signatures win over URL hints. A URL hint with content that lacks
// the signature still selects the format so the grammar can reject it as
// invalid rather than unknown.
func DetectFormat(urlStr, content string) models.Format {
	head := strings.TrimLeft(content, "\ufeff \t\r\n")
	switch {
	case strings.HasPrefix(head, tagHeader):
		return models.FormatHLS
	case looksLikeMPD(head):
		return models.FormatDASH
	case CanParseHLS(urlStr):
		return models.FormatHLS
	case CanParseDASH(urlStr):
		return models.FormatDASH
	}
	return models.FormatUnknown
}

func looksLikeMPD(content string) bool {
	if len(content) > 4096 {
		content = content[:4096]
	}
	return strings.Contains(content, "<MPD") || strings.Contains(content, ":MPD ")
}
