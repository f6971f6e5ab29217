package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"mxfedl/cache"
	"mxfedl/core/auth"
	"mxfedl/core/job"
	"mxfedl/internal/testdb"
	"mxfedl/model"
	"mxfedl/repository"
	"mxfedl/storage"

	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

type fakeJobs struct {
	db       *gorm.DB
	mu       sync.Mutex
	locators []string
	startErr error
}

func (f *fakeJobs) Submit(ctx context.Context, fileName, locator string) (*model.MediaFile, error) {
	f.mu.Lock()
	f.locators = append(f.locators, locator)
	f.mu.Unlock()
	m := &model.MediaFile{FileName: fileName, Locator: locator}
	if err := repository.NewStore(f.db).Media.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (f *fakeJobs) Start(context.Context, uint) error { return f.startErr }

type fixture struct {
	db      *gorm.DB
	jobs    *fakeJobs
	hub     *cache.MemoryStatusHub
	uploads string
	server  *httptest.Server
}

func newFixture(t *testing.T, authn *auth.Authenticator) *fixture {
	t.Helper()
	gdb := testdb.Open(t)
	f := &fixture{
		db:      gdb,
		jobs:    &fakeJobs{db: gdb},
		hub:     cache.NewMemoryStatusHub(),
		uploads: t.TempDir(),
	}
	h := NewAPIHandler(gdb, f.jobs, storage.NewLocalStore(f.uploads), Options{Events: f.hub, Auth: authn}, nil)
	f.server = httptest.NewServer(NewRouter(h))
	t.Cleanup(f.server.Close)
	return f
}

func int64p(v int64) *int64 { return &v }

// seedProcessed stores a processed media file with one track and its EDL.
func (f *fixture) seedProcessed(t *testing.T) (*model.MediaFile, *model.EDLDocument) {
	t.Helper()
	ctx := context.Background()
	store := repository.NewStore(f.db)

	m := &model.MediaFile{FileName: "Promo Spot.mxf", Locator: "/in/promo.mxf"}
	if err := store.Media.Create(ctx, m); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Media.TransitionStatus(ctx, m.ID, model.MediaStatusPending, model.MediaStatusProcessing); err != nil {
		t.Fatal(err)
	}
	results := []*model.RecognitionResult{{
		Title:             "Blue Train",
		Artist:            "John Coltrane",
		ISRC:              "USBN20100001",
		SegmentOffsetMs:   int64p(61500),
		SegmentDurationMs: 10250,
	}}
	if err := store.Tracks.SaveRecognitions(ctx, m.ID, results); err != nil {
		t.Fatal(err)
	}
	doc := &model.EDLDocument{
		ProcessID:        "p-1",
		MediaFileID:      m.ID,
		Name:             "Promo Spot.edl",
		TotalEvents:      1,
		ValidationStatus: model.EDLValidated,
		Blob:             "TITLE: Promo Spot.mxf\nFCM: NON-DROP FRAME",
	}
	if err := store.EDL.Create(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if err := store.Media.Complete(ctx, m.ID, model.MediaStatusProcessed, &doc.ID); err != nil {
		t.Fatal(err)
	}
	m.Status = model.MediaStatusProcessed
	return m, doc
}

func TestUploadAcceptsAndStores(t *testing.T) {
	f := newFixture(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "news open.mxf")
	part.Write([]byte("mxf-bytes"))
	mw.Close()

	resp, err := http.Post(f.server.URL+"/api/media", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var got acceptedResponse
	json.NewDecoder(resp.Body).Decode(&got)
	if got.ID == 0 || got.Status != model.MediaStatusPending {
		t.Fatalf("response = %+v", got)
	}

	if len(f.jobs.locators) != 1 || !strings.HasPrefix(f.jobs.locators[0], f.uploads) {
		t.Fatalf("locators = %v", f.jobs.locators)
	}
	if !strings.HasSuffix(f.jobs.locators[0], "_news_open.mxf") {
		t.Fatalf("stored name = %q", f.jobs.locators[0])
	}
	if data, _ := os.ReadFile(f.jobs.locators[0]); string(data) != "mxf-bytes" {
		t.Fatalf("stored content = %q", data)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	f := newFixture(t, nil)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("other", "x")
	mw.Close()

	resp, _ := http.Post(f.server.URL+"/api/media", mw.FormDataContentType(), &body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSubmitJob(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := http.Post(f.server.URL+"/api/jobs", "application/json", strings.NewReader(`{"locator":"minio://mxfedl/uploads/a.mxf"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	m, _ := repository.NewStore(f.db).Media.GetByID(context.Background(), 1)
	if m == nil || m.FileName != "a.mxf" {
		t.Fatalf("media = %+v", m)
	}

	resp, _ = http.Post(f.server.URL+"/api/jobs", "application/json", strings.NewReader(`{"fileName":"x"}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing locator status = %d", resp.StatusCode)
	}
}

func TestProcessStatusCodes(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusAccepted},
		{job.ErrAlreadyActive, http.StatusConflict},
		{job.ErrNotPending, http.StatusConflict},
		{job.ErrNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		f := newFixture(t, nil)
		f.jobs.startErr = tt.err
		resp, _ := http.Post(f.server.URL+"/api/media/7/process", "application/json", nil)
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("Start error %v: status = %d, want %d", tt.err, resp.StatusCode, tt.want)
		}
	}
}

func TestGetMediaReportsTracks(t *testing.T) {
	f := newFixture(t, nil)
	m, doc := f.seedProcessed(t)

	resp, err := http.Get(f.server.URL + "/api/media/" + itoa(m.ID))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got mediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Status != model.MediaStatusProcessed || got.EDLID == nil || *got.EDLID != doc.ID {
		t.Fatalf("media = %+v", got)
	}
	if len(got.Tracks) != 1 || len(got.Tracks[0].Occurrences) != 1 {
		t.Fatalf("tracks = %+v", got.Tracks)
	}
	occ := got.Tracks[0].Occurrences[0]
	if occ.StartTime != "00:01:01.500" || occ.EndTime != "00:01:11.750" {
		t.Fatalf("occurrence = %+v", occ)
	}

	resp404, _ := http.Get(f.server.URL + "/api/media/999")
	resp404.Body.Close()
	if resp404.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown media status = %d", resp404.StatusCode)
	}
}

func TestDownloadEDL(t *testing.T) {
	f := newFixture(t, nil)
	_, doc := f.seedProcessed(t)

	resp, err := http.Get(f.server.URL + "/api/edl/" + itoa(doc.ID) + "/download")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("Content-Type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="Promo Spot.edl"` {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if buf.String() != doc.Blob {
		t.Fatalf("body = %q", buf.String())
	}
}

func TestAuthMiddlewareAndLogin(t *testing.T) {
	hash, _ := auth.HashPassword("s3cret")
	f := newFixture(t, auth.NewAuthenticator("key", "operator", hash, time.Hour))

	resp, _ := http.Get(f.server.URL + "/api/media")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token status = %d", resp.StatusCode)
	}

	resp, _ = http.Post(f.server.URL+"/api/auth/login", "application/json", strings.NewReader(`{"username":"operator","password":"bad"}`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", resp.StatusCode)
	}

	resp, _ = http.Post(f.server.URL+"/api/auth/login", "application/json", strings.NewReader(`{"username":"operator","password":"s3cret"}`))
	var login struct {
		Token string `json:"token"`
	}
	json.NewDecoder(resp.Body).Decode(&login)
	resp.Body.Close()
	if login.Token == "" {
		t.Fatal("no token issued")
	}

	req, _ := http.NewRequest(http.MethodGet, f.server.URL+"/api/media", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	resp, _ = http.DefaultClient.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("with token status = %d", resp.StatusCode)
	}

	health, _ := http.Get(f.server.URL + "/healthz")
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", health.StatusCode)
	}
}

func TestStatusWebSocket(t *testing.T) {
	f := newFixture(t, nil)
	store := repository.NewStore(f.db)
	m := &model.MediaFile{FileName: "a.mxf", Locator: "/in/a.mxf"}
	store.Media.Create(context.Background(), m)
	store.Media.TransitionStatus(context.Background(), m.ID, model.MediaStatusPending, model.MediaStatusProcessing)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/media/" + itoa(m.ID) + "/status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var first cache.StatusEvent
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatal(err)
	}
	if first.Status != model.MediaStatusProcessing {
		t.Fatalf("first event = %+v", first)
	}

	// wait for the handler to subscribe before publishing
	deadline := time.Now().Add(5 * time.Second)
	for f.hub.SubscriberCount(m.ID) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	f.hub.Publish(context.Background(), cache.StatusEvent{MediaID: m.ID, Status: model.MediaStatusProcessed})

	var next cache.StatusEvent
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatal(err)
	}
	if next.Status != model.MediaStatusProcessed {
		t.Fatalf("next event = %+v", next)
	}
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
