package veldscan

import (
	"github.com/mohaanymo/veldscan/internal/httpclient"
	"github.com/mohaanymo/veldscan/internal/models"
	"github.com/mohaanymo/veldscan/internal/selector"
)

// Manifest is the parse result for one URL. Track lists are never nil.
type Manifest = models.Manifest

// VideoTrack is one video rendition.
type VideoTrack = models.VideoTrack

// AudioTrack is one audio rendition. Muxed audio carries its video's URL
// and has IsEmbedded set.
type AudioTrack = models.AudioTrack

// SubtitleTrack is one subtitle rendition.
type SubtitleTrack = models.SubtitleTrack

// ClosedCaption is an in-stream caption service without its own URL.
type ClosedCaption = models.ClosedCaption

// PlaybackMetadata is the probed duration, live and encryption block shared
// by sibling renditions.
type PlaybackMetadata = models.PlaybackMetadata

// Selection is a set of renditions picked by a selector expression.
type Selection = selector.Selection

// Format is the manifest format.
type Format = models.Format

const (
	FormatUnknown = models.FormatUnknown
	FormatHLS     = models.FormatHLS
	FormatDASH    = models.FormatDASH
)

// Mode selects a light classification or a full parse.
type Mode = models.Mode

const (
	ModeFull  = models.ModeFull
	ModeLight = models.ModeLight
)

// Status is the outcome of a parse.
type Status = models.Status

const (
	StatusSuccess       = models.StatusSuccess
	StatusProcessing    = models.StatusProcessing
	StatusFetchFailed   = models.StatusFetchFailed
	StatusInvalidFormat = models.StatusInvalidFormat
	StatusUnknownFormat = models.StatusUnknownFormat
	StatusParseError    = models.StatusParseError
)

// Fetcher retrieves manifest bytes. Implementations must not panic and
// report failures through Response.Success.
type Fetcher = httpclient.Fetcher

// FetchRequest is one fetch issued by the scanner.
type FetchRequest = httpclient.Request

// FetchResponse is the outcome of a fetch.
type FetchResponse = httpclient.Response

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc = httpclient.FetcherFunc
