package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/corvidae/lyricsync/internal/errmsg"
	"github.com/corvidae/lyricsync/internal/exitcode"
	"github.com/corvidae/lyricsync/internal/orchestrator"
	"github.com/corvidae/lyricsync/internal/probe"
	"github.com/corvidae/lyricsync/internal/scanner"
	"github.com/corvidae/lyricsync/internal/watcher"
)

func newWatchCommand(app *AppContext) *cobra.Command {
	var initialScan bool
	var debounceSeconds int
	var batchSize int
	var extensions string

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Subscribe to filesystem events under dir and keep its lyrics current",
		Args:  cobra.ExactArgs(1),
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

			target, err := filepath.Abs(args[0])
			if err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}
			target = filepath.Clean(target)

			dirs, err := store.ListDirectories()
			if err != nil {
				return withExitCode(exitcode.Fatal, err)
			}
			var directoryID int64
			found := false
			for _, d := range dirs {
				if d.Path == target {
					directoryID, found = d.ID, true
					break
				}
			}
			if !found {
				directoryID, err = store.AddDirectory(target)
				if err != nil {
					return withExitCode(exitcode.InvalidUsage, err)
				}
			}

			exts := cfg.Extensions
			if strings.TrimSpace(extensions) != "" {
				exts = strings.Split(extensions, ",")
			}

			emitter := newEmitter(app)
			sc := &scanner.Scanner{
				Store:      store,
				Extensions: exts,
				Oracle:     probe.ExecDurationOracle("ffprobe", "-v", "quiet", "-show_entries", "format=duration", "-of", "csv=p=0"),
				Emitter:    emitter,
			}

			res, err := buildResolver(cfg)
			if err != nil {
				return withExitCode(exitcode.Fatal, errors.New(errmsg.Format(errmsg.OpResolve, err)))
			}
			orch := &orchestrator.Orchestrator{Store: store, Resolver: res, Emitter: emitter}

			opts := watcher.Options{
				Debounce:  time.Duration(cfg.Watch.DebounceSeconds) * time.Second,
				BatchSize: cfg.Watch.BatchSize,
			}
			if debounceSeconds > 0 {
				opts.Debounce = time.Duration(debounceSeconds) * time.Second
			}
			if batchSize > 0 {
				opts.BatchSize = batchSize
			}

			w := watcher.New(store, sc, orch, emitter, opts)

			fmt.Fprintf(app.IO.Out, "watching %s (directory %d)\n", target, directoryID)
			if err := w.Run(cmd.Context(), directoryID, target, initialScan); err != nil {
				return withExitCode(exitcode.Fatal, errors.New(errmsg.Format(errmsg.OpWatchSubscribe, err)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&initialScan, "initial-scan", false, "Run a full Scanner pass before watching begins")
	cmd.Flags().IntVar(&debounceSeconds, "debounce-seconds", 0, "Debounce window in seconds (default from config)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Maximum paths drained per debounce tick (default from config)")
	cmd.Flags().StringVar(&extensions, "extensions", "", "Comma-separated extension list overriding config")
	return cmd
}
