package connector

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestClientSend(t *testing.T) {
	var gotPath string
	var gotPayload payload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	u, _ := url.Parse(server.URL)
	port, _ := strconv.Atoi(u.Port())

	c := NewClient(Config{Host: u.Hostname(), Port: port, Path: "custom"})
	now := time.Unix(1700000000, 0)
	if err := c.sendAt("hello world", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/custom" {
		t.Errorf("expected normalized path, got %q", gotPath)
	}
	if gotPayload.Text != "hello world" {
		t.Errorf("expected text to round-trip, got %q", gotPayload.Text)
	}
	if gotPayload.TS != now.UnixMilli() {
		t.Errorf("expected ts to match, got %d", gotPayload.TS)
	}
}

func TestClientSendEmptyRejected(t *testing.T) {
	c := NewClient(Config{})
	if err := c.sendAt(" ", time.Now()); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestClientSendErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	u, _ := url.Parse(server.URL)
	port, _ := strconv.Atoi(u.Port())
	c := NewClient(Config{Host: u.Hostname(), Port: port})

	err := c.sendAt("hi", time.Now())
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected error mentioning status 500, got %v", err)
	}
}

func TestNormalizePath(t *testing.T) {
	if normalizePath("") != DefaultPath {
		t.Errorf("expected default path for empty input")
	}
	if normalizePath("messages") != "/messages" {
		t.Errorf("expected leading slash to be added")
	}
	if normalizePath("/already") != "/already" {
		t.Errorf("expected existing leading slash preserved")
	}
}
