// Package cli implements the command tree (§6): cobra commands closing
// over a shared AppContext, grounded on
// adamhalama-music-library-sync/internal/cli's Execute/newRootCommand
// shape, retargeted at this domain's subcommands and exitcode vocabulary.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/corvidae/lyricsync/internal/exitcode"
	"github.com/corvidae/lyricsync/internal/logging"
)

// Execute runs the command tree and returns the process exit code.
func Execute(build BuildInfo, streams IOStreams) int {
	if wd, err := os.Getwd(); err == nil {
		if envErr := loadDotEnvFiles(wd, os.Environ(), os.Setenv); envErr != nil {
			fmt.Fprintln(streams.ErrOut, "WARN:", envErr)
		}
	}

	app := &AppContext{Build: build, IO: streams}
	root := newRootCommand(app)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(streams.ErrOut, "ERROR:", err)
		return mapExitCode(err)
	}
	return exitcode.Success
}

func newRootCommand(app *AppContext) *cobra.Command {
	showVersion := false

	root := &cobra.Command{
		Use:   "lyricsync",
		Short: "Acquire and maintain lyric sidecars for a local music library",
		Long:  "lyricsync scans a music library, resolves synced or plain lyrics through a local cache, a local catalog, and a remote lyrics API, and writes .lrc/.txt sidecars next to each track.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(app)
				return nil
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case app.Opts.Verbose:
				logging.SetLevel(zapcore.DebugLevel)
			case app.Opts.Quiet:
				logging.SetLevel(zapcore.ErrorLevel)
			}
			return nil
		},
		SilenceErrors:     true,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}

	defaultConfigPath := os.Getenv("LYRICSYNC_CONFIG")
	root.PersistentFlags().StringVarP(&app.Opts.ConfigPath, "config", "c", defaultConfigPath, "Path to config file")
	root.PersistentFlags().BoolVar(&app.Opts.JSON, "json", false, "Emit newline-delimited JSON events")
	root.PersistentFlags().BoolVarP(&app.Opts.Quiet, "quiet", "q", false, "Reduce output to errors and summary")
	root.PersistentFlags().BoolVarP(&app.Opts.Verbose, "verbose", "v", false, "Increase diagnostic output")
	root.PersistentFlags().BoolVar(&app.Opts.NoColor, "no-color", false, "Disable color output")
	root.PersistentFlags().BoolVar(&app.Opts.NoInput, "no-input", false, "Disable interactive prompts")
	root.PersistentFlags().BoolVarP(&app.Opts.DryRun, "dry-run", "n", false, "Resolve and report without writing sidecars or the index")
	root.Flags().BoolVar(&showVersion, "version", false, "Print version info")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withExitCode(exitcode.InvalidUsage, err)
	})

	root.AddCommand(newInitCommand(app))
	root.AddCommand(newScanCommand(app))
	root.AddCommand(newDownloadCommand(app))
	root.AddCommand(newSearchCommand(app))
	root.AddCommand(newFetchCommand(app))
	root.AddCommand(newWatchCommand(app))
	root.AddCommand(newConfigCommand(app))
	root.AddCommand(newCacheCommand(app))
	root.AddCommand(newExportCommand(app))
	root.AddCommand(newBatchCommand(app))
	root.AddCommand(newVersionCommand(app))

	return root
}

func newVersionCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version/build metadata",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(app)
		},
	}
}

func printVersion(app *AppContext) {
	version := app.Build.Version
	if version == "" {
		version = "dev"
	}
	commit := app.Build.Commit
	if commit == "" {
		commit = "unknown"
	}
	date := app.Build.Date
	if date == "" {
		date = "unknown"
	}

	fmt.Fprintf(app.IO.Out, "lyricsync version %s\ncommit: %s\nbuild_date: %s\n", version, commit, date)
}
