// Package resolver implements the Resolver: given a track, it runs the
// seven-step cache -> local catalog -> remote lookup of §4.7, composing
// internal/fingerprint, internal/cache, internal/catalog, and
// internal/remote. Tie-break and selection policy, and the skip policy
// resolving §9's --force-overrides-skip-flags Open Question, are
// implemented exactly as specified.
package resolver

import (
	"context"
	"time"

	"github.com/corvidae/lyricsync/internal/cache"
	"github.com/corvidae/lyricsync/internal/catalog"
	"github.com/corvidae/lyricsync/internal/fingerprint"
	"github.com/corvidae/lyricsync/internal/index"
	"github.com/corvidae/lyricsync/internal/remote"
	"github.com/corvidae/lyricsync/internal/score"
)

// Outcome is the tagged union §4.7 names: ResolveOutcome.
type Outcome int

const (
	OutcomeFound Outcome = iota
	OutcomeInstrumental
	OutcomeNotFound
	OutcomeFailed
)

// Result is what Resolve returns: Outcome plus, when Found, the payload.
type Result struct {
	Outcome Outcome
	Payload cache.Payload
	Reason  string // populated when Outcome == OutcomeFailed
}

// Query is the subset of a Track the Resolver needs.
type Query struct {
	Title    string
	Artist   string
	Album    string
	Duration float64
}

// SkipPolicy extends the terminal-state set with configuration flags, per
// §4.7's skip policy.
type SkipPolicy struct {
	SkipSynced bool
	SkipPlain  bool
	Force      bool
}

// ShouldSkip reports whether a track's current state means the Resolver
// should do no work, before even computing a fingerprint.
func (p SkipPolicy) ShouldSkip(state index.LyricState) bool {
	if p.Force {
		return false
	}
	if state.Terminal() {
		return true
	}
	if p.SkipSynced && state == index.StateSyncedPresent {
		return true
	}
	if p.SkipPlain && state == index.StatePlainPresent {
		return true
	}
	return false
}

// Resolver composes the tiers behind the seven-step algorithm.
type Resolver struct {
	Cache   *cache.Cache
	Catalog *catalog.Catalog // may be nil
	Remote  *remote.Client
}

// Resolve runs the algorithm of §4.7 for q, which must already have passed
// SkipPolicy.ShouldSkip.
func (r *Resolver) Resolve(ctx context.Context, q Query) Result {
	fp := fingerprint.Compute(fingerprint.Fields{
		Title: q.Title, Artist: q.Artist, Album: q.Album, Duration: q.Duration,
	})

	entry, err, _ := r.Cache.Resolve(fp.Hash, func() (cache.Entry, error) {
		return r.resolveUncached(ctx, fp.Hash, q)
	})
	if err != nil {
		return Result{Outcome: OutcomeFailed, Reason: err.Error()}
	}
	return entryToResult(entry)
}

func entryToResult(e cache.Entry) Result {
	switch e.Kind {
	case cache.KindHit:
		if e.Payload.Instrumental {
			return Result{Outcome: OutcomeInstrumental, Payload: e.Payload}
		}
		return Result{Outcome: OutcomeFound, Payload: e.Payload}
	case cache.KindNegative:
		return Result{Outcome: OutcomeNotFound}
	default:
		return Result{Outcome: OutcomeNotFound}
	}
}

// resolveUncached performs steps 2-7 of §4.7 under the fingerprint's
// single-flight slot; its return value is itself cached by Cache.Resolve's
// caller semantics are inverted here — we write through explicitly at each
// publish point instead, since the cache needs telling which tier the hit
// came from for the §9 cross-population rule.
func (r *Resolver) resolveUncached(ctx context.Context, fpHash string, q Query) (cache.Entry, error) {
	// Step 2: cache probe.
	if e, ok := r.Cache.Get(ctx, fpHash); ok {
		return e, nil
	}

	// Step 3: local catalog exact.
	if payload, ok := r.Catalog.Find(q.Title, q.Artist, q.Duration); ok {
		p := fromCatalog(payload)
		r.publish(ctx, fpHash, p)
		return hitEntry(p), nil
	}

	// Step 4: remote exact.
	if res, err := r.Remote.GetSigned(ctx, q.Title, q.Artist, q.Album, q.Duration); err == nil {
		payload := fromRemote(res)
		r.publish(ctx, fpHash, payload)
		return hitEntry(payload), nil
	}

	// Step 5: remote search fallback.
	if results, err := r.Remote.Search(ctx, q.Title, q.Artist, q.Album); err == nil {
		if payload, ok := bestRemoteMatch(q, results); ok {
			r.publish(ctx, fpHash, payload)
			return hitEntry(payload), nil
		}
	}

	// Step 6: local catalog fuzzy.
	if candidates := r.Catalog.Search(q.Title, q.Artist, q.Album, q.Duration); len(candidates) > 0 {
		best := fromCatalog(candidates[0])
		r.publish(ctx, fpHash, best)
		return hitEntry(best), nil
	}

	// Step 7: negative hit.
	r.Cache.Negative(ctx, fpHash, cache.DefaultNegativeTTL)
	return cache.Entry{Kind: cache.KindNegative, CreatedAt: time.Now()}, nil
}

func (r *Resolver) publish(ctx context.Context, fpHash string, payload cache.Payload) {
	r.Cache.Put(ctx, fpHash, payload, cache.DefaultHitTTL)
}

func hitEntry(p cache.Payload) cache.Entry {
	return cache.Entry{Kind: cache.KindHit, Payload: p, CreatedAt: time.Now()}
}

func fromCatalog(p catalog.Payload) cache.Payload {
	return cache.Payload{Synced: p.Synced, Plain: p.Plain, Instrumental: p.Instrumental, SourceID: p.SourceID}
}

func fromRemote(res *remote.Result) cache.Payload {
	return cache.Payload{
		Synced:       res.SyncedLyrics,
		Plain:        res.PlainLyrics,
		Instrumental: res.Instrumental,
		SourceID:     res.ID,
	}
}

// bestRemoteMatch ranks remote search results with the same composite
// scorer the Local Catalog uses and accepts the top candidate if it clears
// score.AcceptThreshold (0.7), per §4.7 step 5.
func bestRemoteMatch(q Query, results []remote.Result) (cache.Payload, bool) {
	query := score.Fields{Title: q.Title, Artist: q.Artist, Album: q.Album, Duration: q.Duration}

	var best remote.Result
	bestScore := -1.0
	found := false
	for _, res := range results {
		s := score.Composite(query, score.Fields{
			Title: res.TrackName, Artist: res.ArtistName, Album: res.AlbumName, Duration: res.Duration,
		})
		if s < score.AcceptThreshold {
			continue
		}
		if s > bestScore || (s == bestScore && preferRemote(res, best)) {
			best, bestScore, found = res, s, true
		}
	}
	if !found {
		return cache.Payload{}, false
	}
	return fromRemote(&best), true
}

// preferRemote applies the §4.7 tie-break to two equally-scored remote
// results: synced over plain, then longer body, then lower source id.
func preferRemote(a, b remote.Result) bool {
	if a.HasSynced() != b.HasSynced() {
		return a.HasSynced()
	}
	aLen, bLen := len(a.SyncedLyrics)+len(a.PlainLyrics), len(b.SyncedLyrics)+len(b.PlainLyrics)
	if aLen != bLen {
		return aLen > bLen
	}
	return a.ID < b.ID
}
