// Package probe implements the Metadata Probe: given an audio file path, it
// extracts {title, artist, album, album_artist, duration_seconds}, falling
// back to filename/parent-directory synthesis when tags are missing.
//
// Reading follows the teacher library's tag-reading stack: dhowden/tag as
// the reader for every format (it already understands MP3/FLAC/OGG/M4A/MP4
// container tags), with a bogem/id3v2 fallback for MP3 files whose header
// dhowden/tag cannot parse. Other formats have no read fallback;
// go.senan.xyz/taglib is used only for writing, in embed.go.
package probe

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
)

// Extension constants recognized as music files.
const (
	ExtMP3  = ".mp3"
	ExtFLAC = ".flac"
	ExtOPUS = ".opus"
	ExtOGG  = ".ogg"
	ExtM4A  = ".m4a"
	ExtWAV  = ".wav"
)

// Result is the field contract the Scanner and Orchestrator consume.
type Result struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Duration    float64 // seconds, 0 if unknown
}

// Failed wraps a probe error with the file path that produced it; the
// Scanner records it but never treats it as fatal.
type Failed struct {
	Path   string
	Reason error
}

func (f *Failed) Error() string {
	return "probe failed for " + f.Path + ": " + f.Reason.Error()
}

func (f *Failed) Unwrap() error { return f.Reason }

// IsMusicExt reports whether ext (as returned by filepath.Ext, including the
// leading dot) is a configured music extension. Matching is case-insensitive.
func IsMusicExt(ext string, configured []string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, e := range configured {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// DurationOracle invokes an external CLI to determine a file's duration in
// seconds when no embedded duration is available. nil disables the oracle.
type DurationOracle func(ctx context.Context, path string) (float64, error)

// Probe reads title/artist/album/album-artist/duration from path. It never
// panics: an unreadable file yields a Result synthesized from its file name
// and parent directory, plus a *Failed error that the caller should record
// rather than abort on.
func Probe(ctx context.Context, path string, oracle DurationOracle) (Result, error) {
	res, readErr := readTags(path)
	if readErr != nil {
		res = synthesize(path)
	}

	if res.Duration <= 0 {
		if d, ok := embeddedDuration(path); ok {
			res.Duration = d
		} else if oracle != nil {
			if d, err := oracle(ctx, path); err == nil && d > 0 {
				res.Duration = d
			}
		}
	}

	if res.Title == "" || res.Artist == "" {
		fallback := synthesize(path)
		if res.Title == "" {
			res.Title = fallback.Title
		}
		if res.Artist == "" {
			res.Artist = fallback.Artist
		}
	}

	if readErr != nil {
		return res, &Failed{Path: path, Reason: readErr}
	}
	return res, nil
}

func readTags(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err == nil {
		albumArtist := m.AlbumArtist()
		if albumArtist == "" {
			albumArtist = m.Artist()
		}
		return Result{
			Title:       m.Title(),
			Artist:      m.Artist(),
			Album:       m.Album(),
			AlbumArtist: albumArtist,
		}, nil
	}

	// dhowden/tag can choke on malformed ID3 headers; retry MP3s via id3v2
	// directly before giving up.
	if strings.EqualFold(filepath.Ext(path), ExtMP3) {
		if r, idErr := readID3(path); idErr == nil {
			return r, nil
		}
	}

	return Result{}, err
}

func readID3(path string) (Result, error) {
	tg, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return Result{}, err
	}
	defer tg.Close()

	albumArtist := tg.GetTextFrame(tg.CommonID("Band/Orchestra/Accompaniment")).Text
	if albumArtist == "" {
		albumArtist = tg.Artist()
	}

	return Result{
		Title:       tg.Title(),
		Artist:      tg.Artist(),
		Album:       tg.Album(),
		AlbumArtist: albumArtist,
	}, nil
}

// embeddedDuration looks for a container-reported duration. Only ID3v2's
// TLEN (length in milliseconds) frame carries this without a full audio
// decode; other containers fall through to the external duration oracle.
func embeddedDuration(path string) (float64, bool) {
	if !strings.EqualFold(filepath.Ext(path), ExtMP3) {
		return 0, false
	}
	tg, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return 0, false
	}
	defer tg.Close()

	lenFrame := tg.GetTextFrame(tg.CommonID("Length"))
	ms, err := strconv.Atoi(strings.TrimSpace(lenFrame.Text))
	if err != nil || ms <= 0 {
		return 0, false
	}
	return float64(ms) / 1000.0, true
}

// synthesize derives title from the basename and album from the parent
// directory, per the spec's fallback rule for files with no readable tags.
func synthesize(path string) Result {
	base := filepath.Base(path)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	album := filepath.Base(filepath.Dir(path))
	return Result{
		Title:  title,
		Artist: "Unknown Artist",
		Album:  album,
	}
}

// ExecDurationOracle shells out to an external CLI (ffprobe-shaped: prints a
// bare floating-point seconds value to stdout) to resolve duration when no
// tag carries one. bin is the configured binary name/path; empty disables it.
func ExecDurationOracle(bin string, args ...string) DurationOracle {
	if bin == "" {
		return nil
	}
	return func(ctx context.Context, path string) (float64, error) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		fullArgs := append(append([]string{}, args...), path)
		out, err := exec.CommandContext(ctx, bin, fullArgs...).Output()
		if err != nil {
			return 0, err
		}
		return strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	}
}
