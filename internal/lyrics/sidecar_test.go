package lyrics

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLRCPath_TXTPath(t *testing.T) {
	audio := "/music/artist/album/01 - song.flac"
	if got, want := LRCPath(audio), "/music/artist/album/01 - song.lrc"; got != want {
		t.Errorf("LRCPath() = %q, want %q", got, want)
	}
	if got, want := TXTPath(audio), "/music/artist/album/01 - song.txt"; got != want {
		t.Errorf("TXTPath() = %q, want %q", got, want)
	}
}

func TestWriteSidecar_AtomicAndReadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.lrc")

	if err := WriteSidecar(path, []byte("[00:01.00]hello\n")); err != nil {
		t.Fatal(err)
	}
	if leftovers, err := filepath.Glob(path + ".*.tmp"); err != nil || len(leftovers) != 0 {
		t.Errorf("expected .tmp file to be gone after rename, found %v (glob err = %v)", leftovers, err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "[00:01.00]hello\n" {
		t.Errorf("content = %q", b)
	}
}

func TestWriteLRC_RemovesStaleTXT(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "song.mp3")
	txt := TXTPath(audio)

	if err := os.WriteFile(txt, []byte("plain lyrics"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteLRC(audio, []byte("[00:01.00]hi\n")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(txt); !os.IsNotExist(err) {
		t.Errorf("expected stale .txt to be removed, stat err = %v", err)
	}
	if _, err := os.Stat(LRCPath(audio)); err != nil {
		t.Errorf(".lrc missing: %v", err)
	}
}

func TestWriteInstrumentalMarker(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "song.mp3")

	if err := WriteInstrumentalMarker(audio); err != nil {
		t.Fatal(err)
	}
	lyrics, err := ReadSidecar(audio)
	if err != nil {
		t.Fatal(err)
	}
	if !IsInstrumentalMarker(lyrics) {
		t.Errorf("expected instrumental marker to parse as empty lyrics")
	}
}

func TestReadSidecar_Missing(t *testing.T) {
	dir := t.TempDir()
	lyrics, err := ReadSidecar(filepath.Join(dir, "nope.mp3"))
	if err != nil {
		t.Fatalf("expected no error for missing sidecar, got %v", err)
	}
	if lyrics != nil {
		t.Errorf("expected nil lyrics for missing sidecar")
	}
}
