package download

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDownloadSingleFile(t *testing.T) {
	content := bytes.Repeat([]byte("x"), 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	dir := t.TempDir()
	m := NewManager(dir, nil)
	model := Model{ID: "m1", Filename: "model.bin", URL: server.URL}

	if err := m.Download(context.Background(), model, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "model.bin"))
	if err != nil {
		t.Fatalf("expected final file to exist: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("downloaded content mismatch")
	}
	if _, err := os.Stat(filepath.Join(dir, "model.bin.partial")); !os.IsNotExist(err) {
		t.Errorf("expected partial file to be gone after success")
	}
}

func TestDownloadAlreadyInstalledIsNoop(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "model.bin"), []byte("already here"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "model.bin.partial"), []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(dir, nil)
	model := Model{ID: "m1", Filename: "model.bin", URL: "http://example.invalid"}

	if err := m.Download(context.Background(), model, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "model.bin.partial")); !os.IsNotExist(err) {
		t.Errorf("expected stale partial to be removed")
	}
}

func TestDownloadResumesFromPartial(t *testing.T) {
	full := bytes.Repeat([]byte("y"), 100)
	alreadyHave := full[:40]

	var gotRangeHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRangeHeader = r.Header.Get("Range")
		if gotRangeHeader != "" {
			w.Header().Set("Content-Range", "bytes 40-99/100")
			w.WriteHeader(http.StatusPartialContent)
			w.Write(full[40:])
			return
		}
		w.Write(full)
	}))
	defer server.Close()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "model.bin.partial"), alreadyHave, 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(dir, nil)
	model := Model{ID: "m1", Filename: "model.bin", URL: server.URL}
	if err := m.Download(context.Background(), model, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotRangeHeader != "bytes=40-" {
		t.Errorf("expected resume Range header, got %q", gotRangeHeader)
	}

	got, err := os.ReadFile(filepath.Join(dir, "model.bin"))
	if err != nil {
		t.Fatalf("expected final file: %v", err)
	}
	if !bytes.Equal(got, full) {
		t.Errorf("expected resumed download to match full content")
	}
}

func TestSweepStaleExtractions(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "model-dir.extracting")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatal(err)
	}

	m := NewManager(dir, nil)
	if err := m.SweepStaleExtractions(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("expected stale extraction directory to be removed")
	}
}
