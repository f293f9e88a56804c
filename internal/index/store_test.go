package index

import (
	"path/filepath"
	"testing"
	"time"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddDirectory_DuplicateRejected(t *testing.T) {
	s := openTest(t)

	if _, err := s.AddDirectory("/music"); err != nil {
		t.Fatalf("first AddDirectory error = %v", err)
	}
	if _, err := s.AddDirectory("/music"); err != ErrDuplicateDirectory {
		t.Errorf("expected ErrDuplicateDirectory, got %v", err)
	}
}

func TestAddDirectory_NestedRejected(t *testing.T) {
	s := openTest(t)

	if _, err := s.AddDirectory("/music"); err != nil {
		t.Fatalf("AddDirectory error = %v", err)
	}
	if _, err := s.AddDirectory("/music/subdir"); err != ErrNestedDirectory {
		t.Errorf("expected ErrNestedDirectory, got %v", err)
	}
	if _, err := s.AddDirectory("/"); err != ErrNestedDirectory {
		t.Errorf("expected ErrNestedDirectory for a containing root, got %v", err)
	}
}

func TestUpsertTrack_NewThenUnchanged(t *testing.T) {
	s := openTest(t)
	dirID, err := s.AddDirectory("/music")
	if err != nil {
		t.Fatal(err)
	}

	mtime := time.Unix(1000, 0)
	id, isNew, err := s.UpsertTrack(dirID, "song.mp3", TagFields{Title: "Song", Artist: "Artist"}, mtime)
	if err != nil {
		t.Fatal(err)
	}
	if !isNew {
		t.Error("expected first upsert to be new")
	}

	id2, isNew2, err := s.UpsertTrack(dirID, "song.mp3", TagFields{Title: "Song", Artist: "Artist"}, mtime)
	if err != nil {
		t.Fatal(err)
	}
	if isNew2 {
		t.Error("expected re-scan with identical mtime to not be new")
	}
	if id != id2 {
		t.Error("expected same track id across re-scan")
	}
}

func TestUpsertTrack_MissingTagsDefault(t *testing.T) {
	s := openTest(t)
	dirID, _ := s.AddDirectory("/music")

	id, _, err := s.UpsertTrack(dirID, "a/b/untagged.mp3", TagFields{}, time.Unix(1, 0))
	if err != nil {
		t.Fatal(err)
	}
	tr, err := s.GetTrack(id)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Title != "untagged.mp3" {
		t.Errorf("Title = %q, want basename fallback", tr.Title)
	}
	if tr.Artist != "Unknown Artist" {
		t.Errorf("Artist = %q, want Unknown Artist fallback", tr.Artist)
	}
}

func TestSetLyricState_MonotonicUpgrade(t *testing.T) {
	s := openTest(t)
	dirID, _ := s.AddDirectory("/music")
	id, _, _ := s.UpsertTrack(dirID, "song.mp3", TagFields{Title: "T", Artist: "A"}, time.Unix(1, 0))

	if _, err := s.SetLyricState(id, StatePlainPresent, "", false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SetLyricState(id, StateSyncedPresent, "", false); err != nil {
		t.Fatal(err)
	}

	// SyncedPresent is terminal; a downgrade without force must fail.
	if _, err := s.SetLyricState(id, StatePlainPresent, "", false); err == nil {
		t.Error("expected terminal-state downgrade to be rejected")
	}
	if _, err := s.SetLyricState(id, StatePlainPresent, "forced", true); err != nil {
		t.Errorf("expected --force to override terminal state, got %v", err)
	}
}

func TestSetLyricState_PresentStatesRejectDowngradeWithoutForce(t *testing.T) {
	s := openTest(t)
	dirID, _ := s.AddDirectory("/music")

	plainID, _, _ := s.UpsertTrack(dirID, "plain.mp3", TagFields{Title: "T", Artist: "A"}, time.Unix(1, 0))
	if _, err := s.SetLyricState(plainID, StatePlainPresent, "", false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SetLyricState(plainID, StateNotFound, "", false); err == nil {
		t.Error("expected PlainPresent -> NotFound without --force to be rejected")
	}
	if _, err := s.SetLyricState(plainID, StateFailed, "expired", false); err == nil {
		t.Error("expected PlainPresent -> Failed without --force to be rejected")
	}
	if _, err := s.SetLyricState(plainID, StateNotFound, "", true); err != nil {
		t.Errorf("expected --force to override PlainPresent -> NotFound, got %v", err)
	}

	instID, _, _ := s.UpsertTrack(dirID, "instrumental.mp3", TagFields{Title: "T2", Artist: "A"}, time.Unix(1, 0))
	if _, err := s.SetLyricState(instID, StateInstrumental, "", false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SetLyricState(instID, StateNotFound, "", false); err == nil {
		t.Error("expected Instrumental -> NotFound without --force to be rejected")
	}
}

func TestListTracks_MissingLyricsFilter(t *testing.T) {
	s := openTest(t)
	dirID, _ := s.AddDirectory("/music")
	id1, _, _ := s.UpsertTrack(dirID, "a.mp3", TagFields{Title: "A", Artist: "X"}, time.Unix(1, 0))
	id2, _, _ := s.UpsertTrack(dirID, "b.mp3", TagFields{Title: "B", Artist: "X"}, time.Unix(1, 0))
	if _, err := s.SetLyricState(id2, StateSyncedPresent, "", false); err != nil {
		t.Fatal(err)
	}

	tracks, err := s.ListTracks(Filter{MissingLyrics: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 || tracks[0].ID != id1 {
		t.Errorf("expected only track %d with missing lyrics, got %+v", id1, tracks)
	}
}
