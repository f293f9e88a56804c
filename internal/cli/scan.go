package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/corvidae/lyricsync/internal/errmsg"
	"github.com/corvidae/lyricsync/internal/exitcode"
	"github.com/corvidae/lyricsync/internal/index"
	"github.com/corvidae/lyricsync/internal/probe"
	"github.com/corvidae/lyricsync/internal/scanner"
)

func newScanCommand(app *AppContext) *cobra.Command {
	var force bool
	var prune bool

	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "Walk registered directories and upsert discovered tracks",
		Args:  cobra.MaximumNArgs(1),
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

			dirs, err := directoriesToScan(store, args)
			if err != nil {
				return withExitCode(exitcode.InvalidUsage, errors.New(errmsg.Format(errmsg.OpScanWalk, err)))
			}

			sc := &scanner.Scanner{
				Store:      store,
				Extensions: cfg.Extensions,
				Oracle:     probe.ExecDurationOracle("ffprobe", "-v", "quiet", "-show_entries", "format=duration", "-of", "csv=p=0"),
				Emitter:    newEmitter(app),
				Force:      force,
				Prune:      prune,
			}

			var total scanner.Summary
			for _, d := range dirs {
				summary, err := sc.Scan(cmd.Context(), d.ID, d.Path)
				if err != nil {
					return withExitCode(exitcode.Fatal, err)
				}
				total.Scanned += summary.Scanned
				total.New += summary.New
				total.Updated += summary.Updated
				total.Failed += summary.Failed
				total.Pruned += summary.Pruned
			}

			fmt.Fprintf(app.IO.Out, "scanned=%d new=%d updated=%d failed=%d pruned=%d\n",
				total.Scanned, total.New, total.Updated, total.Failed, total.Pruned)
			if total.Failed > 0 {
				return withExitCode(exitcode.PartialFailure, fmt.Errorf("scan finished with %d failed probes", total.Failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Ignore the mtime short-circuit and re-probe every file")
	cmd.Flags().BoolVar(&prune, "prune", false, "Delete Index rows for files that no longer exist on disk")
	return cmd
}

// directoriesToScan resolves the scan target: the single path argument if
// given, or every registered directory otherwise.
func directoriesToScan(store *index.Store, args []string) ([]index.Directory, error) {
	all, err := store.ListDirectories()
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return all, nil
	}

	target, err := filepath.Abs(args[0])
	if err != nil {
		return nil, err
	}
	target = filepath.Clean(target)

	for _, d := range all {
		if d.Path == target {
			return []index.Directory{d}, nil
		}
	}
	return nil, fmt.Errorf("directory %q is not registered (run init first)", args[0])
}
