package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvidae/lyricsync/internal/errmsg"
	"github.com/corvidae/lyricsync/internal/exitcode"
	"github.com/corvidae/lyricsync/internal/index"
	"github.com/corvidae/lyricsync/internal/orchestrator"
)

func newDownloadCommand(app *AppContext) *cobra.Command {
	var trackID int64
	var missingLyrics bool
	var artist string
	var album string
	var parallel int
	var force bool

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Resolve and persist lyrics for the filter-selected work set",
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

			res, err := buildResolver(cfg)
			if err != nil {
				return withExitCode(exitcode.Fatal, errors.New(errmsg.Format(errmsg.OpResolve, err)))
			}

			filter := index.Filter{MissingLyrics: missingLyrics, Artist: artist, Album: album}
			if trackID > 0 {
				filter.IDs = []int64{trackID}
			}

			orch := &orchestrator.Orchestrator{Store: store, Resolver: res, Emitter: newEmitter(app)}
			summary, err := orch.Run(cmd.Context(), filter, orchestrator.Options{
				MaxParallel: parallel,
				DryRun:      app.Opts.DryRun,
				Force:       force,
				SkipSynced:  cfg.SkipSynced,
				SkipPlain:   cfg.SkipPlain,
				TryEmbed:    cfg.TryEmbed,
			})
			if err != nil {
				return withExitCode(exitcode.Fatal, errors.New(errmsg.Format(errmsg.OpOrchestrate, err)))
			}

			fmt.Fprintf(app.IO.Out, "counts: %v\n", summary.Counts)
			if summary.AnyFailed() {
				return withExitCode(exitcode.PartialFailure, fmt.Errorf("%d track(s) failed", summary.Counts["failed"]))
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&trackID, "track-id", 0, "Restrict to a single track id")
	cmd.Flags().BoolVar(&missingLyrics, "missing-lyrics", false, "Restrict to tracks with no lyrics yet")
	cmd.Flags().StringVar(&artist, "artist", "", "Restrict to tracks by artist")
	cmd.Flags().StringVar(&album, "album", "", "Restrict to tracks on album")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "Bounded worker count (default 4, max 100)")
	cmd.Flags().BoolVar(&force, "force", false, "Re-resolve even tracks in a terminal lyric state; also overrides the skip-synced/skip-plain config flags")
	return cmd
}
