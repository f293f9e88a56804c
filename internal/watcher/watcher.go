// Package watcher implements the Watcher (§4.9): a debounced filesystem
// event pipeline that feeds the Scanner and then the Orchestrator
// incrementally. Grounded on the fsnotify usage pattern shared by the pack
// (e.g. the Korus scanner's debounce-timer-plus-select loop), extended per
// spec with a per-path debounce map, bounded overflow queue with a dropped
// counter, and a periodic reconciliation re-walk.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/corvidae/lyricsync/internal/events"
	"github.com/corvidae/lyricsync/internal/index"
	"github.com/corvidae/lyricsync/internal/orchestrator"
	"github.com/corvidae/lyricsync/internal/scanner"
)

// Options configures debounce/batch/overflow behavior, per §4.9.
type Options struct {
	Debounce         time.Duration // default 10s
	BatchSize        int           // default 50
	QueueCapacity    int           // default 10,000
	ReconcileEvery   time.Duration // default 6h
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 10 * time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = 10_000
	}
	if o.ReconcileEvery <= 0 {
		o.ReconcileEvery = 6 * time.Hour
	}
	return o
}

// Watcher drains debounced filesystem events into Scanner, then invokes
// Orchestrator with a missing-lyrics filter restricted to rescanned tracks.
type Watcher struct {
	Store        *index.Store
	Scanner      *scanner.Scanner
	Orchestrator *orchestrator.Orchestrator
	Emitter      events.Emitter
	Opts         Options

	mu       sync.Mutex
	pending  map[string]time.Time // path -> last-event timestamp
	order    []string             // insertion order, for FIFO drain under overflow
	dropped  int64
}

// New builds a Watcher with defaults applied.
func New(store *index.Store, sc *scanner.Scanner, orch *orchestrator.Orchestrator, emitter events.Emitter, opts Options) *Watcher {
	return &Watcher{
		Store: store, Scanner: sc, Orchestrator: orch, Emitter: emitter,
		Opts:    opts.withDefaults(),
		pending: make(map[string]time.Time),
	}
}

// DroppedCount reports how many paths were discarded due to debounce-queue
// overflow (§4.9's "oldest entries are dropped and a counter incremented").
func (w *Watcher) DroppedCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Run subscribes to filesystem events under every directory registered for
// directoryID and blocks until ctx is cancelled. initialScan, if true, runs
// a full Scanner pass before watching begins.
func (w *Watcher) Run(ctx context.Context, directoryID int64, rootDir string, initialScan bool) error {
	if initialScan {
		if _, err := w.Scanner.Scan(ctx, directoryID, rootDir); err != nil {
			return err
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addRecursive(fw, rootDir); err != nil {
		return err
	}

	debounceTick := time.NewTicker(w.Opts.Debounce / 2)
	defer debounceTick.Stop()

	reconcile := time.NewTicker(w.Opts.ReconcileEvery)
	defer reconcile.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Rename != 0 {
				if err := reAddOnRename(fw, ev.Name); err != nil {
					// Renamed-away directory; nothing further to subscribe.
					continue
				}
			}
			w.recordEvent(ev)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.emitLog(events.LevelWarn, "watcher error: "+err.Error())

		case <-debounceTick.C:
			batch := w.drainReady()
			if len(batch) == 0 {
				continue
			}
			if err := w.processBatch(ctx, directoryID, rootDir, batch); err != nil {
				w.emitLog(events.LevelError, "watch batch failed: "+err.Error())
			}

		case <-reconcile.C:
			// Periodic reconciliation re-walk, per §4.9's overflow-tolerance
			// guarantee: correctness is restored even if events were dropped.
			if _, err := w.Scanner.Scan(ctx, directoryID, rootDir); err != nil {
				w.emitLog(events.LevelWarn, "reconciliation scan failed: "+err.Error())
			}
		}
	}
}

// recordEvent updates path's debounce timestamp, enqueuing it if new.
// Under overflow (queue at capacity) the oldest path is dropped to admit
// the new one, per §4.9.
func (w *Watcher) recordEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.pending[ev.Name]; !exists {
		if len(w.order) >= w.Opts.QueueCapacity {
			oldest := w.order[0]
			w.order = w.order[1:]
			delete(w.pending, oldest)
			w.dropped++
		}
		w.order = append(w.order, ev.Name)
	}
	w.pending[ev.Name] = time.Now()
}

// drainReady removes and returns paths whose debounce window has elapsed,
// up to BatchSize, in FIFO order.
func (w *Watcher) drainReady() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	var ready []string
	var remaining []string
	for _, path := range w.order {
		if len(ready) >= w.Opts.BatchSize {
			remaining = append(remaining, path)
			continue
		}
		if now.Sub(w.pending[path]) >= w.Opts.Debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		} else {
			remaining = append(remaining, path)
		}
	}
	w.order = remaining
	return ready
}

// processBatch re-scans the roots touched by batch then runs the
// Orchestrator restricted to the tracks the scan just touched, with a
// missing-lyrics filter, per §4.9.
func (w *Watcher) processBatch(ctx context.Context, directoryID int64, rootDir string, batch []string) error {
	summary, err := w.Scanner.Scan(ctx, directoryID, rootDir)
	if err != nil {
		return err
	}
	w.emitLog(events.LevelInfo, "watch batch rescanned")

	if summary.Scanned == 0 {
		return nil
	}

	ids, err := w.touchedTrackIDs(directoryID, rootDir, batch)
	if err != nil || len(ids) == 0 {
		return err
	}

	_, err = w.Orchestrator.Run(ctx, index.Filter{MissingLyrics: true, DirectoryID: directoryID, IDs: ids}, orchestrator.Options{MaxParallel: 4})
	return err
}

// touchedTrackIDs resolves the batch's absolute paths back to track ids
// within rootDir so the follow-up Orchestrator.Run can scope its filter.
func (w *Watcher) touchedTrackIDs(directoryID int64, rootDir string, batch []string) ([]int64, error) {
	tracks, err := w.Store.ListTracks(index.Filter{DirectoryID: directoryID})
	if err != nil {
		return nil, err
	}

	touched := make(map[string]struct{}, len(batch))
	for _, p := range batch {
		rel, err := filepath.Rel(rootDir, p)
		if err != nil {
			continue
		}
		touched[filepath.ToSlash(rel)] = struct{}{}
	}

	var ids []int64
	for _, t := range tracks {
		if _, ok := touched[t.RelativePath]; ok {
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

func (w *Watcher) emitLog(level events.Level, msg string) {
	if w.Emitter == nil {
		return
	}
	_ = w.Emitter.Emit(events.Log{Kind: "log", Level: level, Message: msg})
}

// addRecursive subscribes fw to root and every subdirectory, the same
// filepath.WalkDir+fw.Add pattern the pack's fsnotify consumers use.
func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}

// reAddOnRename re-walks newRoot and subscribes every subdirectory, for the
// "directory rename is handled by re-walking the new root" rule of §4.3.
func reAddOnRename(fw *fsnotify.Watcher, newRoot string) error {
	if _, err := os.Stat(newRoot); err != nil {
		return err
	}
	return addRecursive(fw, newRoot)
}
