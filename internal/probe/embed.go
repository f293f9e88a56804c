package probe

import (
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	taglib "go.senan.xyz/taglib"
)

// vorbisLyricsKey is the conventional Vorbis-comment field lyrics players
// recognize; taglib abstracts FLAC/Ogg/Opus/M4A containers behind the same
// key-value map, the same way the teacher writes custom non-constant keys
// (e.g. "TOTALTRACKS") for fields taglib has no named constant for.
const vorbisLyricsKey = "LYRICS"

// EmbedLyrics writes text into the file's native lyrics tag when the
// container supports one. Failure to embed is never fatal to the caller —
// per spec it must not fail the track — so callers should log, not abort,
// on a non-nil error.
func EmbedLyrics(path, text string) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ExtMP3:
		return embedID3USLT(path, text)
	case ExtFLAC, ExtOGG, ExtOPUS, ExtM4A:
		return taglib.WriteTags(path, map[string][]string{vorbisLyricsKey: {text}})
	default:
		return nil // container has no recognized lyrics tag; not an error
	}
}

func embedID3USLT(path, text string) error {
	tg, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer tg.Close()

	tg.AddUnsynchronisedLyricsFrame(id3v2.UnsynchronisedLyricsFrame{
		Encoding:          id3v2.EncodingUTF8,
		Language:          "eng",
		ContentDescriptor: "",
		Lyrics:            text,
	})
	return tg.Save()
}
