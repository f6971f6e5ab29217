package repository

import (
	"context"
	"testing"

	"mxfedl/internal/testdb"
	"mxfedl/model"
)

func int64p(v int64) *int64 { return &v }

func newMedia(t *testing.T, store *Store) *model.MediaFile {
	t.Helper()
	m := &model.MediaFile{FileName: "promo.mxf", Locator: "/data/promo.mxf"}
	if err := store.Media.Create(context.Background(), m); err != nil {
		t.Fatalf("create media: %v", err)
	}
	return m
}

func TestTransitionStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	store := NewStore(testdb.Open(t))
	m := newMedia(t, store)

	if m.Status != model.MediaStatusPending {
		t.Fatalf("new media status = %q, want pending", m.Status)
	}

	ok, err := store.Media.TransitionStatus(ctx, m.ID, model.MediaStatusPending, model.MediaStatusProcessing)
	if err != nil || !ok {
		t.Fatalf("first transition = %v, %v; want true, nil", ok, err)
	}
	ok, err = store.Media.TransitionStatus(ctx, m.ID, model.MediaStatusPending, model.MediaStatusProcessing)
	if err != nil {
		t.Fatalf("second transition: %v", err)
	}
	if ok {
		t.Fatal("second pending->processing transition succeeded")
	}
}

func TestMarkFailedLeavesTerminalStatusAlone(t *testing.T) {
	ctx := context.Background()
	store := NewStore(testdb.Open(t))
	m := newMedia(t, store)

	if _, err := store.Media.TransitionStatus(ctx, m.ID, model.MediaStatusPending, model.MediaStatusProcessing); err != nil {
		t.Fatal(err)
	}
	if err := store.Media.Complete(ctx, m.ID, model.MediaStatusNoWorkflow, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := store.Media.MarkFailed(ctx, m.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	got, err := store.Media.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.MediaStatusNoWorkflow {
		t.Fatalf("status = %q, want no_workflow", got.Status)
	}
}

func TestGetByIDMissing(t *testing.T) {
	store := NewStore(testdb.Open(t))
	got, err := store.Media.GetByID(context.Background(), 42)
	if err != nil || got != nil {
		t.Fatalf("GetByID(42) = %v, %v; want nil, nil", got, err)
	}
}

func TestSaveRecognitionsGroupsByIdentity(t *testing.T) {
	ctx := context.Background()
	store := NewStore(testdb.Open(t))
	m := newMedia(t, store)

	results := []*model.RecognitionResult{
		{
			Title: "Blue Train", Artist: "John Coltrane", ISRC: "USBN20100123", Genre: "Jazz",
			SegmentType: model.SegmentFull, SegmentDurationMs: 30000,
			RawMatches: []model.RawMatch{{Offset: 12.5, Confidence: 0.9}},
		},
		{
			Title: "Blue Train", Artist: "John Coltrane", ISRC: "usbn20100123",
			SegmentType: model.SegmentPartial, SegmentOffsetMs: int64p(60000), SegmentDurationMs: 15000,
		},
		{Title: model.UnknownTitle},
		{
			Title: "So What", Artist: "Miles Davis",
			SegmentType: model.SegmentFull, SegmentDurationMs: 20000,
			RawMatches: []model.RawMatch{{Offset: 100}, {Offset: 3}},
		},
	}
	if err := store.Tracks.SaveRecognitions(ctx, m.ID, results); err != nil {
		t.Fatalf("save: %v", err)
	}

	if results[0].AudioTrackID == nil || results[1].AudioTrackID == nil || results[3].AudioTrackID == nil {
		t.Fatal("recognized results were not linked to tracks")
	}
	if *results[0].AudioTrackID != *results[1].AudioTrackID {
		t.Fatalf("same ISRC produced two tracks: %d and %d", *results[0].AudioTrackID, *results[1].AudioTrackID)
	}
	if results[2].AudioTrackID != nil {
		t.Fatal("unknown title was persisted")
	}

	tracks, err := store.Tracks.ListByMedia(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(tracks))
	}
	if got := []string(tracks[0].Genres); len(got) != 1 || got[0] != "Jazz" {
		t.Fatalf("genres = %v", got)
	}

	timings, err := store.Tracks.Timings(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	train := timings[*results[0].AudioTrackID]
	if train.StartTime != 12500 || train.EndTime != 75000 {
		t.Fatalf("Blue Train timing = %+v, want 12500..75000", train)
	}
	what := timings[*results[3].AudioTrackID]
	if what.StartTime != 3000 || what.EndTime != 120000 {
		t.Fatalf("So What timing = %+v, want 3000..120000", what)
	}
	for _, tr := range tracks {
		for _, o := range tr.Occurrences {
			if o.StartTime > o.EndTime {
				t.Fatalf("occurrence %+v ends before it starts", o)
			}
		}
	}
}

func TestEDLConfirmKeepsErrorOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore(testdb.Open(t))
	m := newMedia(t, store)

	doc := &model.EDLDocument{
		ProcessID:        "5f0c7f7e-1111-4222-8333-444455556666",
		MediaFileID:      m.ID,
		Name:             "promo.edl",
		FrameRate:        29.97,
		ValidationStatus: model.EDLNoMusic,
		ValidationErrors: model.StringList{model.EDLErrNoMusic},
	}
	if err := store.EDL.Create(ctx, doc); err != nil {
		t.Fatal(err)
	}
	errs := []string{model.EDLErrNoMusic, model.EDLErrSaveFile}
	if err := store.EDL.Confirm(ctx, doc.ID, model.EDLError, errs, ""); err != nil {
		t.Fatal(err)
	}
	got, err := store.EDL.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ValidationStatus != model.EDLError {
		t.Fatalf("status = %q", got.ValidationStatus)
	}
	if len(got.ValidationErrors) != 2 || got.ValidationErrors[0] != errs[0] || got.ValidationErrors[1] != errs[1] {
		t.Fatalf("errors = %v, want %v", got.ValidationErrors, errs)
	}
}
