package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetSigned_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, 100)
	_, err := c.GetSigned(context.Background(), "Title", "Artist", "", 0)
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetSigned_DecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1,"trackName":"Song","artistName":"Artist","syncedLyrics":"[00:01.00]hi"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 100)
	res, err := c.GetSigned(context.Background(), "Song", "Artist", "", 100)
	if err != nil {
		t.Fatal(err)
	}
	if !res.HasSynced() {
		t.Error("expected synced lyrics")
	}
	if res.TrackName != "Song" {
		t.Errorf("TrackName = %q", res.TrackName)
	}
}

func TestDoGET_RetriesOn5xxThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1,"trackName":"Song","artistName":"Artist"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 100)
	start := time.Now()
	res, err := c.GetSigned(context.Background(), "Song", "Artist", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if res.TrackName != "Song" {
		t.Errorf("TrackName = %q", res.TrackName)
	}
	if time.Since(start) < baseRetryDelay {
		t.Errorf("expected at least one backoff sleep, elapsed %v", time.Since(start))
	}
}

func TestDoGET_4xxIsTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, 100)
	_, err := c.Search(context.Background(), "Song", "Artist", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (4xx must not retry)", calls.Load())
	}
}

func TestDoGET_HonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(srv.URL, 100)
	start := time.Now()
	if _, err := c.Search(context.Background(), "Song", "Artist", ""); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Errorf("expected to honor Retry-After ~1s, elapsed %v", elapsed)
	}
}

func TestRetryAfter_Parsing(t *testing.T) {
	if got := retryAfter(""); got != baseRetryDelay {
		t.Errorf("empty header = %v, want base delay", got)
	}
	if got := retryAfter("not-a-number"); got != baseRetryDelay {
		t.Errorf("bad header = %v, want base delay", got)
	}
	if got := retryAfter("3"); got != 3*time.Second {
		t.Errorf("3 = %v, want 3s", got)
	}
	if got := retryAfter("9999"); got != maxRetryAfter {
		t.Errorf("large header = %v, want capped at %v", got, maxRetryAfter)
	}
}
