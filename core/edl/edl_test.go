package edl

import (
	"strings"
	"testing"
	"time"

	"mxfedl/model"
)

func fixedNow() time.Time {
	return time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)
}

func uintp(v uint) *uint { return &v }
func intp(v int) *int    { return &v }

func TestSynthesizeNumbersEventsInOrder(t *testing.T) {
	s := NewSynthesizer(Options{Now: fixedNow})
	results := []*model.RecognitionResult{
		{Title: "First", Artist: "A", AudioTrackID: uintp(1)},
		{Title: model.UnknownTitle, Artist: "?"},
		{Title: "", Artist: "nobody"},
		{Title: "Second", Artist: "B", AudioTrackID: uintp(2)},
		{Title: "Third", Artist: "C"},
	}
	timings := map[uint]model.TrackTiming{
		1: {AudioTrackID: 1, StartTime: 12500, EndTime: 75000},
		2: {AudioTrackID: 2, StartTime: 3723000, EndTime: 3724999},
	}
	doc := s.Synthesize("promo.mxf", results, timings)

	if doc.TotalEvents != 3 || len(doc.Events) != 3 {
		t.Fatalf("TotalEvents = %d, events = %d; want 3", doc.TotalEvents, len(doc.Events))
	}
	for i, ev := range doc.Events {
		if ev.Number != i+1 {
			t.Errorf("event %d numbered %d", i, ev.Number)
		}
	}
	if doc.Status != model.EDLValidated || len(doc.Errors) != 0 {
		t.Errorf("status = %q errors = %v", doc.Status, doc.Errors)
	}

	wantLines := []string{
		"001  AX       V     C        00:00:12 00:01:15 00:00:12 00:01:15",
		"002  AX       V     C        01:02:03 01:02:04 01:02:03 01:02:04",
		"003  AX       V     C        00:00:00 00:00:00 00:00:00 00:00:00",
	}
	for _, l := range wantLines {
		if !strings.Contains(doc.Text, l+"\n") {
			t.Errorf("missing event line %q in:\n%s", l, doc.Text)
		}
	}
	if got := strings.Count(doc.Text, "  AX  "); got != doc.TotalEvents {
		t.Errorf("text holds %d event lines, TotalEvents = %d", got, doc.TotalEvents)
	}
	if strings.Contains(doc.Text, NoMusicLine) {
		t.Error("sentinel present in a non-empty document")
	}
}

func TestSynthesizeHeader(t *testing.T) {
	doc := NewSynthesizer(Options{Now: fixedNow}).Synthesize("promo.mxf", nil, nil)
	want := "TITLE: promo.mxf\nFCM: NON-DROP FRAME\nCREATED: Tue Mar 05 14:07:09 2024\n\n"
	if !strings.HasPrefix(doc.Text, want) {
		t.Fatalf("header = %q, want prefix %q", doc.Text, want)
	}

	df := NewSynthesizer(Options{Now: fixedNow, DropFrame: true}).Synthesize("promo.mxf", nil, nil)
	if !strings.Contains(df.Text, "\nFCM: DROP FRAME\n") {
		t.Fatalf("drop-frame header missing:\n%s", df.Text)
	}
}

func TestSynthesizeEmptyInput(t *testing.T) {
	doc := NewSynthesizer(Options{Now: fixedNow}).Synthesize("promo.mxf", []*model.RecognitionResult{{Title: model.UnknownTitle}}, nil)
	if doc.TotalEvents != 0 {
		t.Fatalf("TotalEvents = %d, want 0", doc.TotalEvents)
	}
	if doc.Status != model.EDLNoMusic {
		t.Fatalf("Status = %q, want no_music", doc.Status)
	}
	if len(doc.Errors) != 1 || doc.Errors[0] != model.EDLErrNoMusic {
		t.Fatalf("Errors = %v", doc.Errors)
	}
	if !strings.HasSuffix(doc.Text, "\n\n"+NoMusicLine) {
		t.Fatalf("text does not end with sentinel:\n%s", doc.Text)
	}
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	results := []*model.RecognitionResult{
		{Title: "Song", Artist: "Band", ISRC: "X1", AudioTrackID: uintp(7), RelatedArtists: []string{"x", "y"}},
		{Title: "Other", Artist: "Band", SegmentType: model.SegmentPartial, SegmentFile: "a_segment_2.wav"},
	}
	timings := map[uint]model.TrackTiming{7: {AudioTrackID: 7, StartTime: 1000, EndTime: 2000}}

	a := NewSynthesizer(Options{}).Synthesize("clip.mxf", results, timings)
	b := NewSynthesizer(Options{Now: func() time.Time { return fixedNow().Add(72 * time.Hour) }}).Synthesize("clip.mxf", results, timings)

	strip := func(s string) string {
		var out []string
		for _, l := range strings.Split(s, "\n") {
			if !strings.HasPrefix(l, "CREATED: ") {
				out = append(out, l)
			}
		}
		return strings.Join(out, "\n")
	}
	if strip(a.Text) != strip(b.Text) {
		t.Fatalf("outputs differ beyond CREATED:\n%s\n---\n%s", a.Text, b.Text)
	}
}

func TestMetadataLines(t *testing.T) {
	r := &model.RecognitionResult{
		Title:          "Time Out",
		Artist:         "Brubeck",
		Album:          "Time Out",
		ISRC:           "USSM15900113",
		Genre:          "Jazz",
		ReleaseDate:    "1975-10-31",
		Label:          "Columbia",
		DurationMs:     324999,
		URL:            "https://example.com/t",
		RelatedArtists: []string{"Desmond", "Morello"},
		RawMatches:     []model.RawMatch{{Offset: 1, Confidence: 0.87}},
		StreamIndex:    intp(2),
		Workflow:       "mixed",
		Strategy:       "enhanced",
		SegmentType:    model.SegmentPartial,
		SegmentFile:    "audio_2_enhanced_segment_3.wav",
	}
	got := metadataLines(r)
	want := []string{
		" |MUSIC: Brubeck - Time Out",
		" |SEGMENT: audio_2_enhanced_segment_3.wav",
		" |ISRC: USSM15900113",
		" |GENRE: Jazz",
		" |YEAR: 1975",
		" |LABEL: Columbia",
		" |DURATION: 5:24",
		" |SOURCE: Stream 2 - mixed (enhanced)",
		" |CONFIDENCE: 87.0%",
		" |URL: https://example.com/t",
		" |RELATED_ARTISTS: Desmond, Morello",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d lines:\n%s", len(got), strings.Join(got, "\n"))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMetadataLinesMinimal(t *testing.T) {
	got := metadataLines(&model.RecognitionResult{Title: "T", Artist: "A", Confidence: 42.3, Album: "Other", ReleaseDate: "1975"})
	want := []string{
		" |MUSIC: A - T",
		" |ALBUM: Other",
		" |YEAR: 1975",
		" |SOURCE: Stream N/A - N/A (N/A)",
		" |CONFIDENCE: 42.3%",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("got:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestDeduplicate(t *testing.T) {
	results := []*model.RecognitionResult{{Title: "Song"}, {Title: "song"}, {Title: "Else"}}
	if got := NewSynthesizer(Options{}).Synthesize("x.mxf", results, nil).TotalEvents; got != 3 {
		t.Fatalf("without dedup TotalEvents = %d, want 3", got)
	}
	if got := NewSynthesizer(Options{Deduplicate: true}).Synthesize("x.mxf", results, nil).TotalEvents; got != 2 {
		t.Fatalf("with dedup TotalEvents = %d, want 2", got)
	}
}

func TestTimecodeAndFileName(t *testing.T) {
	if got := Timecode(3599999); got != "00:59:59" {
		t.Errorf("Timecode = %q", got)
	}
	if got := Clock(3723045); got != "01:02:03.045" {
		t.Errorf("Clock = %q", got)
	}
	if got := FileName("/media/in/Promo Spot.MXF"); got != "Promo Spot.edl" {
		t.Errorf("FileName = %q", got)
	}
}
