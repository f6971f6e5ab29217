package recognize

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const matchPayload = `{
  "matches": [{"offset": 42.5, "confidence": 0.87}, {"offset": 90.0, "confidence": 0.5}],
  "track": {
    "title": "Take Five",
    "subtitle": "The Dave Brubeck Quartet",
    "isrc": "USSM15900113",
    "url": "https://www.shazam.com/track/1",
    "release_date": "1959-12-14",
    "label": "Columbia",
    "duration_ms": 324000,
    "genres": {"primary": "Jazz"},
    "images": {"coverart": "https://img/cover.jpg"},
    "sections": [
      {"type": "SONG", "metadata": [{"title": "Label", "text": "Columbia"}, {"title": "Album", "text": "Time Out"}]}
    ],
    "hub": {"artists": [
      {"alias": "a1"}, {"alias": "a2"}, {"alias": ""}, {"alias": "a4"}, {"alias": "a5"}, {"alias": "a6"}
    ]}
  }
}`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte("RIFF....WAVE"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRecognizeParsesMatch(t *testing.T) {
	var gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotFile = header.Filename + ":" + string(data)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, matchPayload)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, WithAPIKey("secret"))
	res, err := c.Recognize(context.Background(), writeSample(t))
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if gotFile != "clip.wav:RIFF....WAVE" {
		t.Errorf("uploaded %q", gotFile)
	}
	if res == nil {
		t.Fatal("Recognize returned nil result")
	}
	if res.Title != "Take Five" || res.Artist != "The Dave Brubeck Quartet" {
		t.Errorf("title/artist = %q/%q", res.Title, res.Artist)
	}
	if res.Album != "Time Out" || res.Genre != "Jazz" || res.ISRC != "USSM15900113" {
		t.Errorf("album/genre/isrc = %q/%q/%q", res.Album, res.Genre, res.ISRC)
	}
	if res.Confidence != 87 {
		t.Errorf("confidence = %v, want 87", res.Confidence)
	}
	if len(res.RawMatches) != 2 || res.RawMatches[0].Offset != 42.5 {
		t.Errorf("raw matches = %+v", res.RawMatches)
	}
	want := []string{"a1", "a2", "a4", "a5"}
	if len(res.RelatedArtists) != len(want) {
		t.Fatalf("related artists = %v, want %v", res.RelatedArtists, want)
	}
	for i := range want {
		if res.RelatedArtists[i] != want[i] {
			t.Errorf("related artist %d = %q, want %q", i, res.RelatedArtists[i], want[i])
		}
	}
	if res.CoverArtURL != "https://img/cover.jpg" || res.DurationMs != 324000 {
		t.Errorf("cover/duration = %q/%d", res.CoverArtURL, res.DurationMs)
	}
}

func TestRecognizeNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"matches": []}`)
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, nil).Recognize(context.Background(), writeSample(t))
	if err != nil || res != nil {
		t.Fatalf("Recognize = %v, %v; want nil, nil", res, err)
	}
}

func TestRecognizeServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).Recognize(context.Background(), writeSample(t))
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
}
