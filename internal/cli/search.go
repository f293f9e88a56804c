package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corvidae/lyricsync/internal/catalog"
	"github.com/corvidae/lyricsync/internal/errmsg"
	"github.com/corvidae/lyricsync/internal/exitcode"
	"github.com/corvidae/lyricsync/internal/remote"
	"github.com/corvidae/lyricsync/internal/score"
)

// searchHit is the format-agnostic result row search renders.
type searchHit struct {
	Title        string  `json:"title"`
	Artist       string  `json:"artist"`
	Album        string  `json:"album"`
	Duration     float64 `json:"duration"`
	Synced       bool    `json:"synced"`
	Plain        bool    `json:"plain"`
	Instrumental bool    `json:"instrumental"`
	Source       string  `json:"source"`
}

func newSearchCommand(app *AppContext) *cobra.Command {
	var artist, album, format string
	var duration float64
	var limit int
	var syncedOnly bool

	cmd := &cobra.Command{
		Use:   "search <title>",
		Short: "Query the Local Catalog and remote search endpoint without persisting anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := args[0]

			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.Fatal, errors.New(errmsg.Format(errmsg.OpConfigLoad, err)))
			}

			cat, err := catalog.Open(cfg.LocalCatalog)
			if err != nil {
				return withExitCode(exitcode.Fatal, errors.New(errmsg.Format(errmsg.OpCatalogSearch, err)))
			}

			var hits []searchHit
			for _, p := range cat.Search(title, artist, album, duration) {
				hits = append(hits, searchHit{
					Title: title, Artist: artist, Album: album,
					Synced: p.Synced != "", Plain: p.Plain != "", Instrumental: p.Instrumental,
					Source: "catalog",
				})
			}

			client := remote.New(cfg.RemoteBaseURL, cfg.RPS)
			results, err := client.Search(cmd.Context(), title, artist, album)
			if err != nil {
				return withExitCode(exitcode.Fatal, errors.New(errmsg.Format(errmsg.OpRemoteSearch, err)))
			}
			for _, r := range results {
				hits = append(hits, searchHit{
					Title: r.TrackName, Artist: r.ArtistName, Album: r.AlbumName, Duration: r.Duration,
					Synced: r.HasSynced(), Plain: r.HasPlain(), Instrumental: r.Instrumental,
					Source: "remote",
				})
			}

			if syncedOnly {
				hits = filterSyncedOnly(hits)
			}
			sort.SliceStable(hits, func(i, j int) bool {
				return score.Similarity(title, hits[i].Title) > score.Similarity(title, hits[j].Title)
			})
			if limit > 0 && len(hits) > limit {
				hits = hits[:limit]
			}

			return renderSearchHits(app, format, hits)
		},
	}

	cmd.Flags().StringVar(&artist, "artist", "", "Narrow by artist")
	cmd.Flags().StringVar(&album, "album", "", "Narrow by album")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Narrow by duration in seconds")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum rows to print")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json, or detailed")
	cmd.Flags().BoolVar(&syncedOnly, "synced-only", false, "Only show results with synced lyrics")
	return cmd
}

func filterSyncedOnly(hits []searchHit) []searchHit {
	var out []searchHit
	for _, h := range hits {
		if h.Synced {
			out = append(out, h)
		}
	}
	return out
}

func renderSearchHits(app *AppContext, format string, hits []searchHit) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(app.IO.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	case "detailed":
		for _, h := range hits {
			fmt.Fprintf(app.IO.Out, "%s - %s [%s]\n  album: %s  duration: %.0fs  synced: %v  plain: %v  instrumental: %v\n",
				h.Artist, h.Title, h.Source, h.Album, h.Duration, h.Synced, h.Plain, h.Instrumental)
		}
		return nil
	default:
		fmt.Fprintf(app.IO.Out, "%-30s %-20s %-20s %-8s %s\n", "TITLE", "ARTIST", "ALBUM", "SOURCE", "SYNCED")
		for _, h := range hits {
			fmt.Fprintf(app.IO.Out, "%-30s %-20s %-20s %-8s %v\n", h.Title, h.Artist, h.Album, h.Source, h.Synced)
		}
		return nil
	}
}
