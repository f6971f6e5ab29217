package model

import "strings"

// StreamKind classifies an elementary stream reported by the prober.
type StreamKind string

const (
	StreamAudio StreamKind = "audio"
	StreamVideo StreamKind = "video"
	StreamData  StreamKind = "data"
)

// StreamDescriptor describes one elementary stream of a container.
type StreamDescriptor struct {
	Index     int        `json:"index"`
	Kind      StreamKind `json:"kind"`
	CodecName string     `json:"codecName"`
	Channels  int        `json:"channels"`
}

// Segment provenance values.
const (
	SegmentFull    = "full"
	SegmentPartial = "partial"
)

// RawMatch is a single fingerprint hit inside the recognized audio.
type RawMatch struct {
	Offset     float64 `json:"offset"`     // seconds from the start of the recognized file
	Confidence float64 `json:"confidence"` // 0..1
}

// RecognitionResult is what the fingerprinting service said about one audio file,
// plus the provenance the orchestrator attaches to it. It is never persisted as is.
type RecognitionResult struct {
	Title          string     `json:"title"`
	Artist         string     `json:"artist"`
	Confidence     float64    `json:"confidence"` // 0..100, zero when unknown
	ISRC           string     `json:"isrc,omitempty"`
	Genre          string     `json:"genre,omitempty"`
	Album          string     `json:"album,omitempty"`
	ReleaseDate    string     `json:"releaseDate,omitempty"`
	Label          string     `json:"label,omitempty"`
	DurationMs     int64      `json:"durationMs,omitempty"`
	URL            string     `json:"url,omitempty"`
	CoverArtURL    string     `json:"coverArtUrl,omitempty"`
	RelatedArtists []string   `json:"relatedArtists,omitempty"`
	RawMatches     []RawMatch `json:"rawMatches,omitempty"`

	Strategy          string `json:"strategy"`
	Workflow          string `json:"workflow"`
	StreamIndex       *int   `json:"streamIndex,omitempty"`
	SegmentType       string `json:"segmentType"`
	SegmentFile       string `json:"segmentFile,omitempty"`
	SegmentOffsetMs   *int64 `json:"segmentOffsetMs,omitempty"`
	SegmentDurationMs int64  `json:"segmentDurationMs"`

	AudioTrackID *uint `json:"audioTrackId,omitempty"`
}

// UnknownTitle is the placeholder some recognizers return instead of an empty title.
const UnknownTitle = "Desconhecido"

// Recognized reports whether r names an actual piece of music.
func (r *RecognitionResult) Recognized() bool {
	if r == nil {
		return false
	}
	t := strings.TrimSpace(r.Title)
	return t != "" && !strings.EqualFold(t, UnknownTitle) && !strings.EqualFold(t, "unknown")
}
