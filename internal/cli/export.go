package cli

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corvidae/lyricsync/internal/errmsg"
	"github.com/corvidae/lyricsync/internal/exitcode"
	"github.com/corvidae/lyricsync/internal/index"
)

func newExportCommand(app *AppContext) *cobra.Command {
	var format, output string
	var missingOnly bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump the Index's track table as JSON or CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.Fatal, errors.New(errmsg.Format(errmsg.OpConfigLoad, err)))
			}

			store, err := openStore(cfg)
			if err != nil {
				return withExitCode(exitcode.Fatal, errors.New(errmsg.Format(errmsg.OpIndexEnsureSchema, err)))
			}
			defer store.Close()

			tracks, err := store.ListTracks(index.Filter{MissingLyrics: missingOnly})
			if err != nil {
				return withExitCode(exitcode.Fatal, errors.New(errmsg.Format(errmsg.OpIndexListTracks, err)))
			}

			var w io.Writer = app.IO.Out
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return withExitCode(exitcode.Fatal, err)
				}
				defer f.Close()
				w = f
			}

			switch strings.ToLower(format) {
			case "csv":
				return exportCSV(w, tracks)
			default:
				return exportJSON(w, tracks)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or csv")
	cmd.Flags().StringVar(&output, "output", "", "Write to this path instead of stdout")
	cmd.Flags().BoolVar(&missingOnly, "missing-only", false, "Restrict to tracks with no lyrics yet")
	return cmd
}

func exportJSON(w io.Writer, tracks []index.Track) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(tracks)
}

func exportCSV(w io.Writer, tracks []index.Track) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"id", "directory_id", "relative_path", "title", "artist", "album", "duration_secs", "lyric_state"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, t := range tracks {
		row := []string{
			strconv.FormatInt(t.ID, 10),
			strconv.FormatInt(t.DirectoryID, 10),
			t.RelativePath,
			t.Title,
			t.Artist,
			t.Album,
			strconv.FormatFloat(t.DurationSecs, 'f', 2, 64),
			string(t.LyricState),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}
