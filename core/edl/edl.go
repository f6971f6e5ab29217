// Package edl renders recognition results as a CMX-style edit decision list.
package edl

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mxfedl/model"
)

// NoMusicLine replaces the event list when nothing was recognized.
const NoMusicLine = "*** NO MUSIC RECOGNIZED ***"

const createdLayout = "Mon Jan 02 15:04:05 2006"

// Event is one numbered entry of the list.
type Event struct {
	Number       int
	Start        string
	End          string
	Title        string
	Artist       string
	AudioTrackID *uint
}

// Document is the result of a synthesis.
type Document struct {
	Name        string
	FrameRate   float64
	DropFrame   bool
	Events      []Event
	TotalEvents int
	Text        string
	Status      string
	Errors      []string
}

// Options configure a Synthesizer.
type Options struct {
	FrameRate float64
	DropFrame bool
	// Deduplicate keeps only the first result for each title.
	Deduplicate bool
	// Now stamps the CREATED header; defaults to time.Now.
	Now func() time.Time
}

// Synthesizer turns recognition results into EDL documents. It holds no state
// between calls and is safe for concurrent use.
type Synthesizer struct {
	opts Options
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(opts Options) *Synthesizer {
	if opts.FrameRate <= 0 {
		opts.FrameRate = 29.97
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Synthesizer{opts: opts}
}

// Synthesize builds the document for source. timings maps AudioTrack ids to the
// span of their persisted occurrences; results without a timing get zero times.
func (s *Synthesizer) Synthesize(source string, results []*model.RecognitionResult, timings map[uint]model.TrackTiming) Document {
	doc := Document{
		Name:      FileName(source),
		FrameRate: s.opts.FrameRate,
		DropFrame: s.opts.DropFrame,
	}

	fcm := "NON-DROP FRAME"
	if s.opts.DropFrame {
		fcm = "DROP FRAME"
	}
	lines := []string{
		"TITLE: " + source,
		"FCM: " + fcm,
		"CREATED: " + s.opts.Now().Format(createdLayout),
		"",
	}

	seen := make(map[string]struct{})
	for _, r := range results {
		if !r.Recognized() {
			continue
		}
		if s.opts.Deduplicate {
			key := strings.ToLower(strings.TrimSpace(r.Title))
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}

		var start, end int64
		if r.AudioTrackID != nil {
			if t, ok := timings[*r.AudioTrackID]; ok {
				start, end = t.StartTime, t.EndTime
			}
		}
		ev := Event{
			Number:       len(doc.Events) + 1,
			Start:        Timecode(start),
			End:          Timecode(end),
			Title:        r.Title,
			Artist:       r.Artist,
			AudioTrackID: r.AudioTrackID,
		}
		doc.Events = append(doc.Events, ev)

		lines = append(lines, fmt.Sprintf("%03d  AX       V     C        %s %s %s %s",
			ev.Number, ev.Start, ev.End, ev.Start, ev.End))
		lines = append(lines, metadataLines(r)...)
	}

	doc.TotalEvents = len(doc.Events)
	if doc.TotalEvents == 0 {
		lines = append(lines, NoMusicLine)
		doc.Status = model.EDLNoMusic
		doc.Errors = []string{model.EDLErrNoMusic}
	} else {
		doc.Status = model.EDLValidated
		doc.Errors = []string{}
	}
	doc.Text = strings.Join(lines, "\n")
	return doc
}

func metadataLines(r *model.RecognitionResult) []string {
	lines := []string{fmt.Sprintf(" |MUSIC: %s - %s", r.Artist, r.Title)}

	if r.SegmentType == model.SegmentPartial {
		lines = append(lines, " |SEGMENT: "+r.SegmentFile)
	}
	if r.ISRC != "" {
		lines = append(lines, " |ISRC: "+r.ISRC)
	}
	if r.Genre != "" {
		lines = append(lines, " |GENRE: "+r.Genre)
	}
	if r.Album != "" && r.Album != r.Title {
		lines = append(lines, " |ALBUM: "+r.Album)
	}
	if r.ReleaseDate != "" {
		year, _, _ := strings.Cut(r.ReleaseDate, "-")
		lines = append(lines, " |YEAR: "+year)
	}
	if r.Label != "" {
		lines = append(lines, " |LABEL: "+r.Label)
	}
	if r.DurationMs > 0 {
		sec := r.DurationMs / 1000
		lines = append(lines, fmt.Sprintf(" |DURATION: %d:%02d", sec/60, sec%60))
	}

	stream := "N/A"
	if r.StreamIndex != nil {
		stream = strconv.Itoa(*r.StreamIndex)
	}
	lines = append(lines, fmt.Sprintf(" |SOURCE: Stream %s - %s (%s)", stream, orNA(r.Workflow), orNA(r.Strategy)))

	if r.Confidence > 0 {
		lines = append(lines, fmt.Sprintf(" |CONFIDENCE: %.1f%%", r.Confidence))
	} else if len(r.RawMatches) > 0 {
		if conf := r.RawMatches[0].Confidence * 100; conf > 0 {
			lines = append(lines, fmt.Sprintf(" |CONFIDENCE: %.1f%%", conf))
		}
	}
	if r.URL != "" {
		lines = append(lines, " |URL: "+r.URL)
	}
	if len(r.RelatedArtists) > 0 {
		lines = append(lines, " |RELATED_ARTISTS: "+strings.Join(r.RelatedArtists, ", "))
	}
	return lines
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Timecode renders milliseconds as HH:MM:SS, truncating sub-second precision.
func Timecode(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// Clock renders milliseconds as HH:MM:SS.mmm.
func Clock(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%s.%03d", Timecode(ms), ms%1000)
}

// FileName returns the attachment name for source: its stem plus ".edl".
func FileName(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".edl"
}
