package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLocator(t *testing.T) {
	tests := []struct {
		in     string
		bucket string
		key    string
		ok     bool
	}{
		{"minio://mxfedl/uploads/a.mxf", "mxfedl", "uploads/a.mxf", true},
		{"minio://mxfedl/", "", "", false},
		{"minio://", "", "", false},
		{"/data/in/a.mxf", "", "", false},
	}
	for _, tt := range tests {
		b, k, ok := ParseLocator(tt.in)
		if b != tt.bucket || k != tt.key || ok != tt.ok {
			t.Errorf("ParseLocator(%q) = %q, %q, %v", tt.in, b, k, ok)
		}
	}
	if got := FormatLocator("b", "/edl/x.edl"); got != "minio://b/edl/x.edl" {
		t.Errorf("FormatLocator = %q", got)
	}
}

func TestResolverLocalAndUnsupported(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mxf")
	if err := os.WriteFile(src, []byte("mxf"), 0644); err != nil {
		t.Fatal(err)
	}
	r := NewResolver(nil, filepath.Join(dir, "scratch"))

	got, cleanup, err := r.Resolve(context.Background(), src)
	if err != nil || got != src {
		t.Fatalf("Resolve(local) = %q, %v", got, err)
	}
	cleanup()
	if _, err := os.Stat(src); err != nil {
		t.Fatal("cleanup removed the source file")
	}

	if _, _, err := r.Resolve(context.Background(), "minio://b/k.mxf"); !errors.Is(err, ErrUnsupportedLocator) {
		t.Errorf("minio without client err = %v", err)
	}
	if _, _, err := r.Resolve(context.Background(), "s3://b/k.mxf"); !errors.Is(err, ErrUnsupportedLocator) {
		t.Errorf("s3 err = %v", err)
	}
	if _, _, err := r.Resolve(context.Background(), filepath.Join(dir, "missing.mxf")); err == nil {
		t.Error("missing local file resolved")
	}
}

func TestLocalStoreSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	loc, err := NewLocalStore(dir).Save(context.Background(), "promo.edl", []byte("TITLE: promo"))
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(loc)
	if err != nil || string(data) != "TITLE: promo" {
		t.Fatalf("saved %q, %v", data, err)
	}
}

func TestLocalStorePutUpload(t *testing.T) {
	dir := t.TempDir()
	loc, err := NewLocalStore(dir).PutUpload(context.Background(), "../escape.mxf", strings.NewReader("mxf"), 3, "")
	if err != nil {
		t.Fatal(err)
	}
	if loc != filepath.Join(dir, "escape.mxf") {
		t.Fatalf("locator = %q, want file inside upload dir", loc)
	}
	if data, _ := os.ReadFile(loc); string(data) != "mxf" {
		t.Fatalf("content = %q", data)
	}
}

func TestResolverDownloadsHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/media/spot.mxf" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("remote-mxf"))
	}))
	defer srv.Close()

	r := NewResolver(nil, t.TempDir())
	got, cleanup, err := r.Resolve(context.Background(), srv.URL+"/media/spot.mxf")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "spot.mxf" {
		t.Fatalf("path = %q", got)
	}
	if data, _ := os.ReadFile(got); string(data) != "remote-mxf" {
		t.Fatalf("content = %q", data)
	}
	cleanup()
	if _, err := os.Stat(got); !os.IsNotExist(err) {
		t.Fatal("cleanup left the download behind")
	}

	if _, _, err := r.Resolve(context.Background(), srv.URL+"/missing.mxf"); err == nil {
		t.Fatal("404 resolved")
	}
}
