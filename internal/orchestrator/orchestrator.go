// Package orchestrator implements the Orchestrator (§4.8): a
// bounded-concurrency driver that pulls a filter-selected work set from the
// Index, runs each track through the Resolver, persists the result as a
// sidecar file plus an Index lyric-state transition, and reports progress
// events. The worker pool is golang.org/x/sync/errgroup with a
// golang.org/x/sync/semaphore counting gate — the teacher's own scanner pool
// (internal/scanner) is channel+WaitGroup code kept for the simpler probe
// fan-out; the Orchestrator upgrades to errgroup/semaphore because
// cancellation and first-error propagation matter more here (§5).
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/corvidae/lyricsync/internal/events"
	"github.com/corvidae/lyricsync/internal/index"
	"github.com/corvidae/lyricsync/internal/lyrics"
	"github.com/corvidae/lyricsync/internal/probe"
	"github.com/corvidae/lyricsync/internal/resolver"
)

// Options configures a single orchestrator run, per §4.8.
type Options struct {
	MaxParallel int // clamped to [1, 100], default 4
	DryRun      bool
	Force       bool
	SkipSynced  bool
	SkipPlain   bool
	TryEmbed    bool
}

// clampParallel enforces the [1, 100] bound with a default of 4.
func (o Options) clampParallel() int {
	switch {
	case o.MaxParallel <= 0:
		return 4
	case o.MaxParallel > 100:
		return 100
	default:
		return o.MaxParallel
	}
}

// Summary is the final per-outcome tally reported after a run, per §4.8's
// "final summary event reports totals per outcome kind".
type Summary struct {
	Counts   map[string]int
	Failures []string
}

const maxReportedFailures = 20

// Orchestrator composes the components the seven-step Resolver doesn't own:
// the Index (work-set source and state sink) and the filesystem (sidecar
// writes).
type Orchestrator struct {
	Store    *index.Store
	Resolver *resolver.Resolver
	Emitter  events.Emitter
}

// outcomeName maps a resolver.Outcome to the string vocabulary §4.8/§6 use
// in events and exit-code decisions.
func outcomeName(o resolver.Outcome) string {
	switch o {
	case resolver.OutcomeFound:
		return "found"
	case resolver.OutcomeInstrumental:
		return "instrumental"
	case resolver.OutcomeNotFound:
		return "not_found"
	case resolver.OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Run drives the filter-selected work set through resolve -> persist ->
// update-index with bounded concurrency opts.MaxParallel, per §4.8/§5.
// Cancellation observed via ctx: in-flight workers finish their current
// suspension point and no further tracks are dequeued (§4.8 Cancellation).
func (o *Orchestrator) Run(ctx context.Context, filter index.Filter, opts Options) (Summary, error) {
	tracks, err := o.Store.ListTracks(filter)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Counts: make(map[string]int)}
	var summaryCh = make(chan trackReport, len(tracks))

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(opts.clampParallel()))

	total := len(tracks)
	o.emitProgress("download", 0, total)

	for idx, t := range tracks {
		if err := sem.Acquire(gctx, 1); err != nil {
			// Context cancelled while waiting for a slot: stop feeding new
			// work but let already-dispatched workers drain.
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			report := o.runOne(gctx, t, opts)
			summaryCh <- report
			o.emitProgress("download", idx+1, total)
			return nil
		})
	}

	// errgroup.Go never returns an error from runOne itself (per-track
	// failures are converted to Failed outcomes, §7): every goroutine returns
	// nil, so Wait returns nil here.
	waitErr := g.Wait()
	close(summaryCh)

	for report := range summaryCh {
		summary.Counts[report.outcome]++
		if report.outcome == "failed" && len(summary.Failures) < maxReportedFailures {
			summary.Failures = append(summary.Failures, report.reason)
		}
		o.emitTrackOutcome(report)
	}

	o.emitSummary(summary)

	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return summary, waitErr
	}
	return summary, nil
}

type trackReport struct {
	trackID   int64
	outcome   string
	reason    string
	elapsedMs int64
}

// runOne resolves and persists a single track. It never returns an error:
// every failure mode is captured as a Failed outcome per §7's "per-track
// errors are caught inside the Orchestrator worker... they never unwind the
// orchestrator".
func (o *Orchestrator) runOne(ctx context.Context, t index.Track, opts Options) trackReport {
	start := time.Now()
	elapsed := func() int64 { return time.Since(start).Milliseconds() }

	if ctx.Err() != nil {
		return trackReport{trackID: t.ID, outcome: "failed", reason: "cancelled", elapsedMs: elapsed()}
	}

	policy := resolver.SkipPolicy{SkipSynced: opts.SkipSynced, SkipPlain: opts.SkipPlain, Force: opts.Force}
	if policy.ShouldSkip(t.LyricState) {
		return trackReport{trackID: t.ID, outcome: string(t.LyricState), elapsedMs: elapsed()}
	}

	result := o.Resolver.Resolve(ctx, resolver.Query{
		Title: t.Title, Artist: t.Artist, Album: t.Album, Duration: t.DurationSecs,
	})

	if opts.DryRun {
		return trackReport{trackID: t.ID, outcome: outcomeName(result.Outcome), reason: result.Reason, elapsedMs: elapsed()}
	}

	audioPath, pathErr := o.audioPath(t)
	if pathErr != nil {
		_, _ = o.Store.SetLyricState(t.ID, index.StateFailed, pathErr.Error(), opts.Force)
		return trackReport{trackID: t.ID, outcome: "failed", reason: pathErr.Error(), elapsedMs: elapsed()}
	}

	newState, reason, embedText := o.persist(audioPath, result)
	if _, err := o.Store.SetLyricState(t.ID, newState, reason, opts.Force); err != nil {
		return trackReport{trackID: t.ID, outcome: "failed", reason: err.Error(), elapsedMs: elapsed()}
	}

	if opts.TryEmbed && embedText != "" {
		// Embed failure never fails the track, per §4.8.
		_ = probe.EmbedLyrics(audioPath, embedText)
	}

	return trackReport{trackID: t.ID, outcome: outcomeName(result.Outcome), reason: reason, elapsedMs: elapsed()}
}

func (o *Orchestrator) audioPath(t index.Track) (string, error) {
	dir, err := o.Store.DirectoryPath(t.DirectoryID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.FromSlash(t.RelativePath)), nil
}

// persist implements steps 2-6 of §4.8: write the appropriate sidecar and
// return the Index state transition it corresponds to. It returns the text
// that should be embedded into tags (if any) for the caller's try-embed step.
func (o *Orchestrator) persist(audioPath string, result resolver.Result) (index.LyricState, string, string) {
	switch result.Outcome {
	case resolver.OutcomeFound:
		if result.Payload.Synced != "" {
			if err := lyrics.WriteLRC(audioPath, []byte(result.Payload.Synced)); err != nil {
				return index.StateFailed, err.Error(), ""
			}
			if err := verifySidecarWrite(audioPath, index.StateSyncedPresent); err != nil {
				return index.StateFailed, err.Error(), ""
			}
			return index.StateSyncedPresent, "", result.Payload.Synced
		}
		if result.Payload.Plain != "" {
			if _, err := os.Stat(lyrics.LRCPath(audioPath)); err == nil {
				// An .lrc already exists; plain text never overwrites it,
				// per §4.8 step 3 ("unless an .lrc already exists").
				return index.StatePlainPresent, "", result.Payload.Plain
			}
			if err := lyrics.WriteSidecar(lyrics.TXTPath(audioPath), []byte(result.Payload.Plain)); err != nil {
				return index.StateFailed, err.Error(), ""
			}
			return index.StatePlainPresent, "", result.Payload.Plain
		}
		return index.StateFailed, "found result carried no lyric text", ""
	case resolver.OutcomeInstrumental:
		if err := lyrics.WriteInstrumentalMarker(audioPath); err != nil {
			return index.StateFailed, err.Error(), ""
		}
		if err := verifySidecarWrite(audioPath, index.StateInstrumental); err != nil {
			return index.StateFailed, err.Error(), ""
		}
		return index.StateInstrumental, "", ""
	case resolver.OutcomeNotFound:
		return index.StateNotFound, "", ""
	default:
		return index.StateFailed, result.Reason, ""
	}
}

// verifySidecarWrite reads the .lrc just written back off disk and confirms
// it actually satisfies the state it's about to be recorded as, rather than
// trusting the resolver payload's shape alone — the §3/§8 invariant is about
// what's on disk, not what the remote/catalog claimed.
func verifySidecarWrite(audioPath string, state index.LyricState) error {
	parsed, err := lyrics.ReadSidecar(audioPath)
	if err != nil {
		return fmt.Errorf("verify sidecar: %w", err)
	}
	if parsed == nil {
		return fmt.Errorf("verify sidecar: %s was not written", lyrics.LRCPath(audioPath))
	}
	switch state {
	case index.StateSyncedPresent:
		if !parsed.IsSynced() {
			return fmt.Errorf("verify sidecar: %s has no synced lines", lyrics.LRCPath(audioPath))
		}
	case index.StateInstrumental:
		if !lyrics.IsInstrumentalMarker(parsed) {
			return fmt.Errorf("verify sidecar: %s is not the instrumental marker", lyrics.LRCPath(audioPath))
		}
	}
	return nil
}

func (o *Orchestrator) emitProgress(stage string, done, total int) {
	if o.Emitter == nil {
		return
	}
	_ = o.Emitter.Emit(events.Progress{Kind: "progress", Stage: stage, Done: done, Total: total})
}

func (o *Orchestrator) emitTrackOutcome(r trackReport) {
	if o.Emitter == nil {
		return
	}
	_ = o.Emitter.Emit(events.TrackOutcome{
		Kind: "track_outcome", TrackID: r.trackID, Outcome: r.outcome, ElapsedMs: r.elapsedMs, Reason: r.reason,
	})
}

func (o *Orchestrator) emitSummary(s Summary) {
	if o.Emitter == nil {
		return
	}
	_ = o.Emitter.Emit(events.Summary{Kind: "summary", Counts: s.Counts, Failures: s.Failures})
}

// AnyFailed reports whether the summary contains at least one Failed
// outcome — the §7 rule for a non-zero exit code.
func (s Summary) AnyFailed() bool {
	return s.Counts["failed"] > 0
}
