package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"math"
	"regexp"
	"strings"

	"github.com/mohaanymo/veldscan/internal/models"
)

// ErrNotDASH is returned when text carries no MPD element.
var ErrNotDASH = errors.New("no MPD element found")

// DASH MPD XML structures. Numeric attributes are kept as strings so that a
// malformed value drops only that field instead of failing the document.

type MPD struct {
	XMLName                   xml.Name `xml:"MPD"`
	Type                      string   `xml:"type,attr"`
	MediaPresentationDuration string   `xml:"mediaPresentationDuration,attr"`
	MinBufferTime             string   `xml:"minBufferTime,attr"`
	Profiles                  string   `xml:"profiles,attr"`
	BaseURL                   string   `xml:"BaseURL"`
	Periods                   []Period `xml:"Period"`

	// Fallback is true when the document was recovered by the regex extractor.
	Fallback bool `xml:"-"`
}

type Period struct {
	ID             string          `xml:"id,attr"`
	Start          string          `xml:"start,attr"`
	Duration       string          `xml:"duration,attr"`
	BaseURL        string          `xml:"BaseURL"`
	AdaptationSets []AdaptationSet `xml:"AdaptationSet"`
}

type AdaptationSet struct {
	ID                 string              `xml:"id,attr"`
	MimeType           string              `xml:"mimeType,attr"`
	ContentType        string              `xml:"contentType,attr"`
	Lang               string              `xml:"lang,attr"`
	Label              string              `xml:"label,attr"`
	Codecs             string              `xml:"codecs,attr"`
	Width              string              `xml:"width,attr"`
	Height             string              `xml:"height,attr"`
	FrameRate          string              `xml:"frameRate,attr"`
	BaseURL            string              `xml:"BaseURL"`
	SegmentTemplate    *SegmentTemplate    `xml:"SegmentTemplate"`
	ContentProtections []ContentProtection `xml:"ContentProtection"`
	Roles              []Descriptor        `xml:"Role"`
	Representations    []Representation    `xml:"Representation"`
}

type Representation struct {
	ID                        string              `xml:"id,attr"`
	Bandwidth                 string              `xml:"bandwidth,attr"`
	Width                     string              `xml:"width,attr"`
	Height                    string              `xml:"height,attr"`
	FrameRate                 string              `xml:"frameRate,attr"`
	Codecs                    string              `xml:"codecs,attr"`
	MimeType                  string              `xml:"mimeType,attr"`
	BaseURL                   string              `xml:"BaseURL"`
	SegmentTemplate           *SegmentTemplate    `xml:"SegmentTemplate"`
	ContentProtections        []ContentProtection `xml:"ContentProtection"`
	AudioChannelConfiguration *Descriptor         `xml:"AudioChannelConfiguration"`
}

type SegmentTemplate struct {
	Media          string `xml:"media,attr"`
	Initialization string `xml:"initialization,attr"`
	Timescale      string `xml:"timescale,attr"`
	Duration       string `xml:"duration,attr"`
	StartNumber    string `xml:"startNumber,attr"`
}

type ContentProtection struct {
	SchemeIDURI string `xml:"schemeIdUri,attr"`
	Value       string `xml:"value,attr"`
	DefaultKID  string `xml:"default_KID,attr"`
}

// Descriptor is a generic schemeIdUri/value element (Role, AudioChannelConfiguration).
type Descriptor struct {
	SchemeIDURI string `xml:"schemeIdUri,attr"`
	Value       string `xml:"value,attr"`
}

// ParseDASH decodes an MPD document. When the XML decoder rejects the text
// (unescaped ampersands in URLs are common) a regex extractor recovers the
// same field set.
func ParseDASH(content string) (*MPD, error) {
	if !strings.Contains(content, "<MPD") && !strings.Contains(content, ":MPD") {
		return nil, ErrNotDASH
	}

	var mpd MPD
	xmlErr := xml.Unmarshal([]byte(content), &mpd)
	if xmlErr == nil {
		return &mpd, nil
	}

	recovered, err := extractMPD(content)
	if err != nil {
		return nil, fmt.Errorf("parse MPD: %w (regex fallback: %v)", xmlErr, err)
	}
	return recovered, nil
}

// IsDynamic reports a live MPD.
func (m *MPD) IsDynamic() bool {
	return strings.EqualFold(m.Type, "dynamic")
}

// RepresentationCount counts representations across all periods.
func (m *MPD) RepresentationCount() int {
	n := 0
	for _, p := range m.Periods {
		for _, as := range p.AdaptationSets {
			n += len(as.Representations)
		}
	}
	return n
}

// Summary computes the metadata block carried directly by the MPD.
func (m *MPD) Summary() *models.PlaybackMetadata {
	md := &models.PlaybackMetadata{IsLive: m.IsDynamic()}

	if !md.IsLive {
		if secs, ok := ParseISODuration(m.MediaPresentationDuration); ok && secs > 0 {
			d := int(math.Round(secs))
			md.Duration = &d
		}
	}

	var protections []ContentProtection
	for _, p := range m.Periods {
		for _, as := range p.AdaptationSets {
			protections = append(protections, as.ContentProtections...)
			for _, rep := range as.Representations {
				protections = append(protections, rep.ContentProtections...)
			}
		}
	}
	if len(protections) > 0 {
		md.IsEncrypted = true
		md.EncryptionMethod, md.DRMSystems = describeProtection(protections)
	}
	return md
}

// Well known DRM system ids.
var drmSystems = map[string]string{
	"edef8ba9-79d6-4ace-a3c8-27dcd51d21ed": "widevine",
	"9a04f079-9840-4286-ab92-e65be0885f95": "playready",
	"94ce86fb-07ff-4f43-adb8-93d2fa968ca2": "fairplay",
	"e2719d58-a985-b3c9-781a-b030af78d30e": "clearkey",
	"1077efec-c0b2-4d02-ace3-3c1e52e2fb4b": "clearkey",
}

const mp4ProtectionScheme = "urn:mpeg:dash:mp4protection:2011"

func describeProtection(cps []ContentProtection) (string, []string) {
	method := ""
	seen := make(map[string]bool)
	var systems []string
	for _, cp := range cps {
		scheme := strings.ToLower(strings.TrimSpace(cp.SchemeIDURI))
		if scheme == mp4ProtectionScheme {
			if method == "" && cp.Value != "" {
				method = strings.ToLower(cp.Value)
			}
			continue
		}
		id := strings.TrimPrefix(scheme, "urn:uuid:")
		if name, ok := drmSystems[id]; ok && !seen[name] {
			seen[name] = true
			systems = append(systems, name)
		}
	}
	if method == "" {
		method = "cenc"
	}
	return method, systems
}

var reISODuration = regexp.MustCompile(`^P(?:([\d.]+)Y)?(?:([\d.]+)M)?(?:([\d.]+)W)?(?:([\d.]+)D)?(?:T(?:([\d.]+)H)?(?:([\d.]+)M)?(?:([\d.]+)S)?)?$`)

// ParseISODuration parses an xs:duration such as "PT1H2M3.5S" into seconds.
func ParseISODuration(s string) (float64, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "P" || s == "PT" {
		return 0, false
	}
	m := reISODuration.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	units := []float64{365 * 86400, 30 * 86400, 7 * 86400, 86400, 3600, 60, 1}
	var total float64
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		v, ok := parseFloat(m[i+1])
		if !ok {
			return 0, false
		}
		total += v * unit
	}
	return total, true
}

// ParseFrameRate parses "30", "29.97" or the rational "30000/1001" form.
func ParseFrameRate(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	num, den, rational := strings.Cut(s, "/")
	n, ok := parseFloat(num)
	if !ok {
		return 0, false
	}
	if !rational {
		return n, true
	}
	d, ok := parseFloat(den)
	if !ok || d == 0 {
		return 0, false
	}
	return n / d, true
}

// ParseNumber parses a decimal DASH attribute; failures mean "absent".
func ParseNumber(s string) (int64, bool) {
	return parseInt(s)
}

// Regex fallback.

var (
	reMPDOpen           = regexp.MustCompile(`(?s)<(?:\w+:)?MPD\b([^>]*)>`)
	reAdaptationSet     = regexp.MustCompile(`(?s)<(?:\w+:)?AdaptationSet\b([^>]*?)(?:/>|>(.*?)</(?:\w+:)?AdaptationSet>)`)
	reRepresentation    = regexp.MustCompile(`(?s)<(?:\w+:)?Representation\b([^>]*?)(?:/>|>(.*?)</(?:\w+:)?Representation>)`)
	reBaseURL           = regexp.MustCompile(`(?s)<(?:\w+:)?BaseURL\b[^>]*>(.*?)</(?:\w+:)?BaseURL>`)
	reSegmentTemplate   = regexp.MustCompile(`(?s)<(?:\w+:)?SegmentTemplate\b([^>]*?)/?>`)
	reContentProtection = regexp.MustCompile(`(?s)<(?:\w+:)?ContentProtection\b([^>]*?)/?>`)
	reRole              = regexp.MustCompile(`(?s)<(?:\w+:)?Role\b([^>]*?)/?>`)
	reChannelConfig     = regexp.MustCompile(`(?s)<(?:\w+:)?AudioChannelConfiguration\b([^>]*?)/?>`)
	reXMLAttr           = regexp.MustCompile(`([A-Za-z_][\w:.-]*)\s*=\s*"([^"]*)"`)
	reFirstStructural   = regexp.MustCompile(`<(?:\w+:)?(?:Period|AdaptationSet)\b`)
)

func extractMPD(content string) (*MPD, error) {
	open := reMPDOpen.FindStringSubmatch(content)
	if open == nil {
		return nil, ErrNotDASH
	}
	attrs := xmlAttrs(open[1])

	mpd := &MPD{
		Type:                      attrs["type"],
		MediaPresentationDuration: attrs["mediaPresentationDuration"],
		MinBufferTime:             attrs["minBufferTime"],
		Profiles:                  attrs["profiles"],
		Fallback:                  true,
	}

	head := content
	if loc := reFirstStructural.FindStringIndex(content); loc != nil {
		head = content[:loc[0]]
	}
	mpd.BaseURL = firstBaseURL(head)

	period := Period{}
	for _, m := range reAdaptationSet.FindAllStringSubmatch(content, -1) {
		period.AdaptationSets = append(period.AdaptationSets, extractAdaptationSet(m[1], m[2]))
	}
	if len(period.AdaptationSets) == 0 {
		return nil, errors.New("no AdaptationSet elements")
	}
	mpd.Periods = []Period{period}
	return mpd, nil
}

func extractAdaptationSet(attrText, body string) AdaptationSet {
	attrs := xmlAttrs(attrText)
	as := AdaptationSet{
		ID:          attrs["id"],
		MimeType:    attrs["mimeType"],
		ContentType: attrs["contentType"],
		Lang:        attrs["lang"],
		Label:       attrs["label"],
		Codecs:      attrs["codecs"],
		Width:       attrs["width"],
		Height:      attrs["height"],
		FrameRate:   attrs["frameRate"],
	}

	// Elements that belong to the set itself, not to its representations.
	own := reRepresentation.ReplaceAllString(body, "")
	as.BaseURL = firstBaseURL(own)
	as.SegmentTemplate = extractSegmentTemplate(own)
	as.ContentProtections = extractProtections(own)
	for _, m := range reRole.FindAllStringSubmatch(own, -1) {
		a := xmlAttrs(m[1])
		as.Roles = append(as.Roles, Descriptor{SchemeIDURI: a["schemeIdUri"], Value: a["value"]})
	}

	for _, m := range reRepresentation.FindAllStringSubmatch(body, -1) {
		ra := xmlAttrs(m[1])
		rep := Representation{
			ID:        ra["id"],
			Bandwidth: ra["bandwidth"],
			Width:     ra["width"],
			Height:    ra["height"],
			FrameRate: ra["frameRate"],
			Codecs:    ra["codecs"],
			MimeType:  ra["mimeType"],
		}
		if inner := m[2]; inner != "" {
			rep.BaseURL = firstBaseURL(inner)
			rep.SegmentTemplate = extractSegmentTemplate(inner)
			rep.ContentProtections = extractProtections(inner)
			if cc := reChannelConfig.FindStringSubmatch(inner); cc != nil {
				a := xmlAttrs(cc[1])
				rep.AudioChannelConfiguration = &Descriptor{SchemeIDURI: a["schemeIdUri"], Value: a["value"]}
			}
		}
		as.Representations = append(as.Representations, rep)
	}
	return as
}

func extractSegmentTemplate(s string) *SegmentTemplate {
	m := reSegmentTemplate.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	a := xmlAttrs(m[1])
	return &SegmentTemplate{
		Media:          a["media"],
		Initialization: a["initialization"],
		Timescale:      a["timescale"],
		Duration:       a["duration"],
		StartNumber:    a["startNumber"],
	}
}

func extractProtections(s string) []ContentProtection {
	var out []ContentProtection
	for _, m := range reContentProtection.FindAllStringSubmatch(s, -1) {
		a := xmlAttrs(m[1])
		out = append(out, ContentProtection{
			SchemeIDURI: a["schemeIdUri"],
			Value:       a["value"],
			DefaultKID:  a["default_KID"],
		})
	}
	return out
}

func firstBaseURL(s string) string {
	m := reBaseURL.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(m[1]))
}

// xmlAttrs maps attribute local names to unescaped values.
func xmlAttrs(s string) map[string]string {
	out := make(map[string]string)
	for _, m := range reXMLAttr.FindAllStringSubmatch(s, -1) {
		name := m[1]
		if i := strings.LastIndexByte(name, ':'); i >= 0 {
			name = name[i+1:]
		}
		if _, exists := out[name]; !exists {
			out[name] = html.UnescapeString(m[2])
		}
	}
	return out
}
