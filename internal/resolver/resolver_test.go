package resolver

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/corvidae/lyricsync/internal/cache"
	"github.com/corvidae/lyricsync/internal/catalog"
	"github.com/corvidae/lyricsync/internal/index"
	"github.com/corvidae/lyricsync/internal/remote"
)

func newTestResolver(t *testing.T, remoteBody string) *Resolver {
	t.Helper()
	file, err := cache.NewFile(filepath.Join(t.TempDir(), "cache"), 256<<20)
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/get" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(remoteBody))
	}))
	t.Cleanup(srv.Close)

	return &Resolver{
		Cache:  cache.New(nil, file),
		Remote: remote.New(srv.URL, 100),
	}
}

func TestResolve_RemoteSearchFallbackAboveThreshold(t *testing.T) {
	r := newTestResolver(t, `[{"id":1,"trackName":"Bohemian Rhapsody","artistName":"Queen","syncedLyrics":"[00:01.00]hi"}]`)

	res := r.Resolve(context.Background(), Query{Title: "Bohemain Rhapody", Artist: "Quen"})
	if res.Outcome != OutcomeFound {
		t.Fatalf("Outcome = %v, want OutcomeFound", res.Outcome)
	}
	if res.Payload.Synced == "" {
		t.Error("expected synced payload from remote search fallback")
	}
}

func TestResolve_NoMatchIsNotFound(t *testing.T) {
	r := newTestResolver(t, `[]`)
	res := r.Resolve(context.Background(), Query{Title: "Nonexistent Track", Artist: "Nobody"})
	if res.Outcome != OutcomeNotFound {
		t.Fatalf("Outcome = %v, want OutcomeNotFound", res.Outcome)
	}
}

func TestResolve_CachesNegativeHit(t *testing.T) {
	r := newTestResolver(t, `[]`)
	q := Query{Title: "Nonexistent Track", Artist: "Nobody"}

	first := r.Resolve(context.Background(), q)
	if first.Outcome != OutcomeNotFound {
		t.Fatal("expected first resolve to be NotFound")
	}
	second := r.Resolve(context.Background(), q)
	if second.Outcome != OutcomeNotFound {
		t.Fatal("expected cached resolve to also be NotFound")
	}
}

func TestResolve_InstrumentalFromCatalogShortCircuits(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.Exec(`
		CREATE TABLE catalog_entries (
			id INTEGER PRIMARY KEY, title TEXT, artist TEXT, album TEXT, duration REAL,
			synced_lyrics TEXT, plain_lyrics TEXT, instrumental INTEGER
		);
		INSERT INTO catalog_entries VALUES (1, 'Interlude', 'Someone', '', 0, '', '', 1);
	`)
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	cat, err := catalog.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()

	file, err := cache.NewFile(filepath.Join(t.TempDir(), "cache"), 256<<20)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := &Resolver{Cache: cache.New(nil, file), Catalog: cat, Remote: remote.New(srv.URL, 100)}
	res := r.Resolve(context.Background(), Query{Title: "Interlude", Artist: "Someone"})
	if res.Outcome != OutcomeInstrumental {
		t.Fatalf("Outcome = %v, want OutcomeInstrumental", res.Outcome)
	}
}

func TestSkipPolicy_ForceOverridesSkipFlags(t *testing.T) {
	p := SkipPolicy{SkipPlain: true, Force: true}
	if p.ShouldSkip(index.StatePlainPresent) {
		t.Error("--force must override skip_tracks_with_plain_lyrics")
	}
}

func TestSkipPolicy_TerminalStateSkipped(t *testing.T) {
	p := SkipPolicy{}
	if !p.ShouldSkip(index.StateSyncedPresent) {
		t.Error("SyncedPresent is terminal and must be skipped without --force")
	}
}

func TestSkipPolicy_SkipFlagsExtendTerminalSet(t *testing.T) {
	p := SkipPolicy{SkipPlain: true}
	if !p.ShouldSkip(index.StatePlainPresent) {
		t.Error("skip_tracks_with_plain_lyrics should skip PlainPresent")
	}
	if p.ShouldSkip(index.StateUnknown) {
		t.Error("Unknown is never skipped absent a matching flag")
	}
}

func TestCatalog_FindIntegratesWithResolver(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.Exec(`
		CREATE TABLE catalog_entries (
			id INTEGER PRIMARY KEY, title TEXT, artist TEXT, album TEXT, duration REAL,
			synced_lyrics TEXT, plain_lyrics TEXT, instrumental INTEGER
		);
		INSERT INTO catalog_entries VALUES (1, 'Song', 'Artist', '', 100, '[00:01.00]hi', '', 0);
	`)
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	cat, err := catalog.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()

	file, err := cache.NewFile(filepath.Join(t.TempDir(), "cache"), 256<<20)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := &Resolver{Cache: cache.New(nil, file), Catalog: cat, Remote: remote.New(srv.URL, 100)}
	res := r.Resolve(context.Background(), Query{Title: "Song", Artist: "Artist", Duration: 100})
	if res.Outcome != OutcomeFound {
		t.Fatalf("Outcome = %v, want OutcomeFound from local catalog exact match", res.Outcome)
	}
}
