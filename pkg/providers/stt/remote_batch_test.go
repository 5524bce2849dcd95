package stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestRemoteBatchSTTTranscribeHappyPath(t *testing.T) {
	var pollCount int32
	var deleted int32

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/files", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]string{"id": "file-1"})
			return
		}
	})
	mux.HandleFunc("/v1/files/file-1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			atomic.AddInt32(&deleted, 1)
			w.WriteHeader(http.StatusNoContent)
		}
	})
	mux.HandleFunc("/v1/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "job-1"})
	})
	mux.HandleFunc("/v1/transcriptions/job-1", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&pollCount, 1)
		status := "processing"
		if n >= 2 {
			status = "completed"
		}
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	mux.HandleFunc("/v1/transcriptions/job-1/transcript", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "the quick brown fox"})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	s := NewRemoteBatchSTT("test-key", "model-x", server.URL, nil)
	text, err := s.Transcribe(context.Background(), []byte("RIFF...fakewav"), "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "the quick brown fox" {
		t.Errorf("expected transcript text, got %q", text)
	}
	if atomic.LoadInt32(&deleted) != 1 {
		t.Errorf("expected uploaded file to be deleted exactly once, got %d", deleted)
	}
}

func TestRemoteBatchSTTJobError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/files", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "file-1"})
	})
	mux.HandleFunc("/v1/files/file-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/v1/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "job-1"})
	})
	mux.HandleFunc("/v1/transcriptions/job-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "error"})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	s := NewRemoteBatchSTT("test-key", "model-x", server.URL, nil)
	_, err := s.Transcribe(context.Background(), []byte("wav"), "en")
	if err == nil || !strings.Contains(err.Error(), "failed") {
		t.Fatalf("expected job failure error, got %v", err)
	}
}
