package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/corvidae/lyricsync/internal/exitcode"
)

func newCacheCommand(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or maintain the local file cache tier",
	}

	cmd.AddCommand(newCacheStatsCommand(app), newCacheClearCommand(app), newCacheCleanupCommand(app))
	return cmd
}

func newCacheStatsCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Report entry count and on-disk size of the file cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.Fatal, err)
			}
			c, err := buildCache(cfg)
			if err != nil {
				return withExitCode(exitcode.Fatal, err)
			}
			stats, err := c.File.Stats()
			if err != nil {
				return withExitCode(exitcode.Fatal, err)
			}
			fmt.Fprintf(app.IO.Out, "root: %s\nentries: %d\nbytes: %s (%d)\n",
				stats.Root, stats.EntryCount, humanize.Bytes(uint64(stats.Bytes)), stats.Bytes)
			return nil
		},
	}
}

func newCacheClearCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached entry from the file cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.Fatal, err)
			}
			c, err := buildCache(cfg)
			if err != nil {
				return withExitCode(exitcode.Fatal, err)
			}
			if err := c.File.Clear(); err != nil {
				return withExitCode(exitcode.Fatal, err)
			}
			fmt.Fprintln(app.IO.Out, "Cache cleared.")
			return nil
		},
	}
}

func newCacheCleanupCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Compact shard logs to their latest-entry-per-fingerprint form",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.Fatal, err)
			}
			c, err := buildCache(cfg)
			if err != nil {
				return withExitCode(exitcode.Fatal, err)
			}
			if err := c.File.Compact(); err != nil {
				return withExitCode(exitcode.Fatal, err)
			}
			fmt.Fprintln(app.IO.Out, "Cache compacted.")
			return nil
		},
	}
}
