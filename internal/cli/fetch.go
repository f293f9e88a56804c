package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corvidae/lyricsync/internal/errmsg"
	"github.com/corvidae/lyricsync/internal/exitcode"
	"github.com/corvidae/lyricsync/internal/lyrics"
	"github.com/corvidae/lyricsync/internal/probe"
	"github.com/corvidae/lyricsync/internal/resolver"
)

func newFetchCommand(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <file>",
		Short: "Probe one file and resolve/write its lyrics outside the Index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.Fatal, errors.New(errmsg.Format(errmsg.OpConfigLoad, err)))
			}

			res, err := buildResolver(cfg)
			if err != nil {
				return withExitCode(exitcode.Fatal, errors.New(errmsg.Format(errmsg.OpResolve, err)))
			}

			tags, err := probe.Probe(cmd.Context(), path, probe.ExecDurationOracle("ffprobe", "-v", "quiet", "-show_entries", "format=duration", "-of", "csv=p=0"))
			if err != nil {
				return withExitCode(exitcode.Fatal, errors.New(errmsg.FormatWith(errmsg.OpProbeFile, path, err)))
			}

			result := res.Resolve(cmd.Context(), resolver.Query{
				Title: tags.Title, Artist: tags.Artist, Album: tags.Album, Duration: tags.Duration,
			})

			if app.Opts.DryRun {
				fmt.Fprintf(app.IO.Out, "%s: %s\n", path, outcomeLabel(result))
				return nil
			}

			if err := writeFetchResult(path, result); err != nil {
				return withExitCode(exitcode.Fatal, errors.New(errmsg.FormatWith(errmsg.OpSidecarWrite, path, err)))
			}

			fmt.Fprintf(app.IO.Out, "%s: %s\n", path, outcomeLabel(result))
			if result.Outcome == resolver.OutcomeFailed {
				return withExitCode(exitcode.PartialFailure, fmt.Errorf("%s", result.Reason))
			}
			return nil
		},
	}
	return cmd
}

func outcomeLabel(r resolver.Result) string {
	switch r.Outcome {
	case resolver.OutcomeFound:
		if r.Payload.Synced != "" {
			return "found (synced)"
		}
		return "found (plain)"
	case resolver.OutcomeInstrumental:
		return "instrumental"
	case resolver.OutcomeNotFound:
		return "not found"
	default:
		return "failed: " + r.Reason
	}
}

// writeFetchResult mirrors the Orchestrator's sidecar-writing rules (§4.8
// steps 2-4) for a single ad hoc file not necessarily tracked in the Index.
func writeFetchResult(path string, result resolver.Result) error {
	switch result.Outcome {
	case resolver.OutcomeFound:
		if result.Payload.Synced != "" {
			return lyrics.WriteLRC(path, []byte(result.Payload.Synced))
		}
		if result.Payload.Plain != "" {
			if _, err := os.Stat(lyrics.LRCPath(path)); err == nil {
				return nil
			}
			return lyrics.WriteSidecar(lyrics.TXTPath(path), []byte(result.Payload.Plain))
		}
		return nil
	case resolver.OutcomeInstrumental:
		return lyrics.WriteInstrumentalMarker(path)
	default:
		return nil
	}
}
