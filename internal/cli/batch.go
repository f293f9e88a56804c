package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corvidae/lyricsync/internal/errmsg"
	"github.com/corvidae/lyricsync/internal/exitcode"
	"github.com/corvidae/lyricsync/internal/probe"
	"github.com/corvidae/lyricsync/internal/resolver"
)

func newBatchCommand(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Run fetch for every path listed, one per line, in a manifest file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := readManifest(args[0])
			if err != nil {
				return withExitCode(exitcode.InvalidUsage, errors.New(errmsg.FormatWith(errmsg.OpScanWalk, args[0], err)))
			}

			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.Fatal, errors.New(errmsg.Format(errmsg.OpConfigLoad, err)))
			}

			res, err := buildResolver(cfg)
			if err != nil {
				return withExitCode(exitcode.Fatal, errors.New(errmsg.Format(errmsg.OpResolve, err)))
			}

			oracle := probe.ExecDurationOracle("ffprobe", "-v", "quiet", "-show_entries", "format=duration", "-of", "csv=p=0")

			var failed int
			for _, path := range paths {
				tags, err := probe.Probe(cmd.Context(), path, oracle)
				if err != nil {
					fmt.Fprintf(app.IO.Out, "%s: probe failed: %v\n", path, err)
					failed++
					continue
				}

				result := res.Resolve(cmd.Context(), resolver.Query{
					Title: tags.Title, Artist: tags.Artist, Album: tags.Album, Duration: tags.Duration,
				})

				if !app.Opts.DryRun {
					if err := writeFetchResult(path, result); err != nil {
						fmt.Fprintf(app.IO.Out, "%s: write failed: %v\n", path, err)
						failed++
						continue
					}
				}
				if result.Outcome == resolver.OutcomeFailed {
					failed++
				}
				fmt.Fprintf(app.IO.Out, "%s: %s\n", path, outcomeLabel(result))
			}

			if failed > 0 {
				return withExitCode(exitcode.PartialFailure, fmt.Errorf("%d of %d entries failed", failed, len(paths)))
			}
			return nil
		},
	}
	return cmd
}

// readManifest reads one non-empty, non-comment path per line.
func readManifest(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	return paths, scanner.Err()
}
