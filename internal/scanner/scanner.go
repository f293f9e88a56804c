// Package scanner implements the Scanner component: walks configured
// directories, probes candidate files on a bounded worker pool, and upserts
// results into the Index Store. Grounded directly on the teacher's
// library.Refresh/processFiles worker-pool shape (channel fan-out/fan-in,
// atomic progress counter, ticker-driven progress events), retargeted at
// internal/index and internal/probe instead of the teacher's own DB schema.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corvidae/lyricsync/internal/events"
	"github.com/corvidae/lyricsync/internal/index"
	"github.com/corvidae/lyricsync/internal/probe"
)

// Summary is the per-run result reported to the caller, per §4.3.
type Summary struct {
	Scanned int
	New     int
	Updated int
	Failed  int
	Pruned  int
}

// Scanner walks directories and populates an index.Store.
type Scanner struct {
	Store      *index.Store
	Extensions []string
	Oracle     probe.DurationOracle
	Emitter    events.Emitter
	// Force ignores the mtime short-circuit and re-probes every file.
	Force bool
	// Prune deletes Index rows whose relative path no longer exists under
	// the scanned directory, per §4.3.
	Prune bool
}

func workerCount() int {
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}

type candidate struct {
	absPath string
	relPath string
	mtime   time.Time
}

type probed struct {
	candidate
	result probe.Result
	err    error
}

// Scan walks dir (registered under directoryID) and upserts discovered
// tracks. The filesystem walk itself is single-threaded; probing fans out
// across a bounded worker pool sized to min(NumCPU, 8).
func (s *Scanner) Scan(ctx context.Context, directoryID int64, rootDir string) (Summary, error) {
	var summary Summary

	var candidates []candidate
	walkErr := filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == rootDir {
				return err // fatal only on the root directory per §4.3
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !probe.IsMusicExt(filepath.Ext(path), s.Extensions) {
			return nil
		}
		info, statErr := d.Info()
		if statErr != nil {
			return nil
		}
		rel, relErr := filepath.Rel(rootDir, path)
		if relErr != nil {
			rel = path
		}
		candidates = append(candidates, candidate{absPath: path, relPath: rel, mtime: info.ModTime()})
		return nil
	})
	if walkErr != nil {
		return summary, walkErr
	}

	s.emitProgress("scan", 0, len(candidates))

	existingTracks, err := s.Store.ListTracks(index.Filter{DirectoryID: directoryID})
	if err != nil {
		return summary, err
	}
	existing := make(map[string]index.Track, len(existingTracks))
	for _, t := range existingTracks {
		existing[t.RelativePath] = t
	}

	seen := make(map[string]bool, len(candidates))
	toProcess := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		rel := filepath.ToSlash(c.relPath)
		seen[rel] = true
		if !s.Force {
			if t, ok := existing[rel]; ok && t.FileMtime.Unix() == c.mtime.Unix() {
				continue
			}
		}
		toProcess = append(toProcess, c)
	}

	if s.Prune {
		for rel, t := range existing {
			if seen[rel] {
				continue
			}
			if err := s.Store.DeleteTrack(t.ID); err != nil {
				return summary, err
			}
			summary.Pruned++
		}
	}

	results := s.probeAll(ctx, toProcess)

	for _, r := range results {
		if r.err != nil {
			summary.Failed++
			continue
		}
		_, wasNew, err := s.Store.UpsertTrack(directoryID, filepath.ToSlash(r.relPath), index.TagFields{
			Title:       r.result.Title,
			Artist:      r.result.Artist,
			Album:       r.result.Album,
			AlbumArtist: r.result.AlbumArtist,
			Duration:    r.result.Duration,
		}, r.mtime)
		if err != nil {
			summary.Failed++
			continue
		}
		summary.Scanned++
		if wasNew {
			summary.New++
		} else {
			summary.Updated++
		}
	}

	s.emitProgress("scan", len(candidates), len(candidates))
	return summary, nil
}

func (s *Scanner) probeAll(ctx context.Context, candidates []candidate) []probed {
	total := len(candidates)
	if total == 0 {
		return nil
	}

	workCh := make(chan candidate, total)
	resultCh := make(chan probed, total)
	var processedCount atomic.Int64

	var wg sync.WaitGroup
	for range workerCount() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range workCh {
				res, err := probe.Probe(ctx, c.absPath, s.Oracle)
				resultCh <- probed{candidate: c, result: res, err: err}
				processedCount.Add(1)
			}
		}()
	}

	go func() {
		for _, c := range candidates {
			workCh <- c
		}
		close(workCh)
	}()

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.emitProgress("probe", int(processedCount.Load()), total)
			case <-done:
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]probed, 0, total)
	for r := range resultCh {
		results = append(results, r)
	}
	close(done)

	return results
}

func (s *Scanner) emitProgress(stage string, done, total int) {
	if s.Emitter == nil {
		return
	}
	s.Emitter.Emit(events.Progress{Kind: "progress", Stage: stage, Done: done, Total: total})
}
