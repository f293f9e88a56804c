// Sidecar path derivation and atomic write, grounded on the teacher's
// deleted source.go (lrcPathForAudio, cachePath) and on the write-then-rename
// pattern spec §9 calls for: write to a temp file beside the target, fsync,
// then rename over it so a reader never observes a partial .lrc.
package lyrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// instrumentalMarker is the exact sidecar body written for Instrumental
// tracks, per §3.
const instrumentalMarker = "[au: instrumental]\n"

// LRCPath returns the expected .lrc sidecar path for an audio file.
func LRCPath(audioPath string) string {
	return withExt(audioPath, ".lrc")
}

// TXTPath returns the expected plain-text sidecar path for an audio file.
func TXTPath(audioPath string) string {
	return withExt(audioPath, ".txt")
}

func withExt(audioPath, ext string) string {
	e := filepath.Ext(audioPath)
	return audioPath[:len(audioPath)-len(e)] + ext
}

// WriteSidecar atomically writes content to path: it writes to a
// uniquely-named temp sibling, fsyncs it, then renames it over path. A write
// that fails partway never leaves a half-written file at path, and the
// random suffix keeps concurrent writers to the same path (e.g. a retried
// download racing the original) from colliding on one temp file.
func WriteSidecar(path string, content []byte) error {
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.New().String())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// WriteLRC writes a synced or plain LRC sidecar for audioPath and removes any
// stale .txt sidecar, since an .lrc supersedes it per §3.
func WriteLRC(audioPath string, content []byte) error {
	if err := WriteSidecar(LRCPath(audioPath), content); err != nil {
		return err
	}
	txt := TXTPath(audioPath)
	if _, err := os.Stat(txt); err == nil {
		_ = os.Remove(txt)
	}
	return nil
}

// WriteInstrumentalMarker writes the fixed instrumental-marker sidecar body
// to audioPath's .lrc location.
func WriteInstrumentalMarker(audioPath string) error {
	return WriteSidecar(LRCPath(audioPath), []byte(instrumentalMarker))
}

// ReadSidecar loads and parses an existing .lrc sidecar for audioPath, if
// one is present. It returns (nil, nil) when no sidecar file exists.
func ReadSidecar(audioPath string) (*Lyrics, error) {
	f, err := os.Open(LRCPath(audioPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return ParseLRC(f)
}

// IsInstrumentalMarker reports whether an already-parsed sidecar has no
// timestamped lines, which is how the fixed instrumental marker parses. Any
// other sidecar without timestamped lines (metadata only, or untimed text)
// also reports true.
func IsInstrumentalMarker(l *Lyrics) bool {
	return l != nil && len(l.Lines) == 0
}
