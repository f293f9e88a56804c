// Package catalog implements the Local Catalog: an optional read-only
// snapshot of a remote lyrics corpus, fuzzy-searchable. Scoring is shared
// with the Resolver's remote-search fallback via internal/score
// (the teacher's internal/radio/fuzzy.go similarity function generalized to
// a weighted composite); the top-K sort idiom follows the "sort candidates
// by score descending" step of internal/radio/candidates.go's selectTracks,
// without that file's weighted-random queue-building (not applicable to a
// deterministic lookup).
package catalog

import (
	"database/sql"
	"math"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/corvidae/lyricsync/internal/fingerprint"
	"github.com/corvidae/lyricsync/internal/score"
)

const topK = 5

// Entry is a single row of the local lyrics catalog.
type Entry struct {
	ID           int64
	Title        string
	Artist       string
	Album        string
	Duration     float64
	Synced       string
	Plain        string
	Instrumental bool
}

// Payload converts an Entry into the resolver-facing payload shape.
type Payload struct {
	Synced       string
	Plain        string
	Instrumental bool
	SourceID     int64
}

func (e Entry) toPayload() Payload {
	return Payload{Synced: e.Synced, Plain: e.Plain, Instrumental: e.Instrumental, SourceID: e.ID}
}

// Catalog is a read-only companion index. A nil *Catalog is valid and
// behaves as "absent" everywhere per §4.4: Find/Search return zero values,
// never an error.
type Catalog struct {
	db *sql.DB
}

// Open opens path read-only. An empty path means "no catalog configured"
// and returns (nil, nil) rather than an error.
func Open(path string) (*Catalog, error) {
	if path == "" {
		return nil, nil
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&immutable=1")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &Catalog{db: db}, nil
}

func (c *Catalog) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

// Find attempts an exact match on normalized (title, artist) with duration
// tolerance +/-2s, per §4.4.
func (c *Catalog) Find(title, artist string, duration float64) (Payload, bool) {
	if c == nil {
		return Payload{}, false
	}

	rows, err := c.db.Query(`
		SELECT id, title, artist, album, duration, synced_lyrics, plain_lyrics, instrumental
		FROM catalog_entries`)
	if err != nil {
		return Payload{}, false
	}
	defer rows.Close()

	want := FingerprintKey(fingerprint.Fields{Title: title, Artist: artist})
	var best Entry
	found := false
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			continue
		}
		if FingerprintKey(fingerprint.Fields{Title: e.Title, Artist: e.Artist}) != want {
			continue
		}
		if duration > 0 && e.Duration > 0 && math.Abs(e.Duration-duration) > 2 {
			continue
		}
		if !found || preferEntry(e, best) {
			best = e
			found = true
		}
	}
	if !found {
		return Payload{}, false
	}
	return best.toPayload(), true
}

// Search runs the fuzzy composite-score lookup of §4.4: top-K (K=5) above
// SearchThreshold (0.55), ranked and tie-broken per the Resolver's
// selection policy (§4.7: synced over plain, then longer body, then lower
// id).
func (c *Catalog) Search(title, artist, album string, duration float64) []Payload {
	if c == nil {
		return nil
	}

	rows, err := c.db.Query(`SELECT id, title, artist, album, duration, synced_lyrics, plain_lyrics, instrumental FROM catalog_entries`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	query := score.Fields{Title: title, Artist: artist, Album: album, Duration: duration}

	type scored struct {
		entry Entry
		s     float64
	}
	var candidates []scored
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			continue
		}
		s := score.Composite(query, score.Fields{Title: e.Title, Artist: e.Artist, Album: e.Album, Duration: e.Duration})
		if s >= score.SearchThreshold {
			candidates = append(candidates, scored{entry: e, s: s})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].s != candidates[j].s {
			return candidates[i].s > candidates[j].s
		}
		return preferEntry(candidates[i].entry, candidates[j].entry)
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	out := make([]Payload, len(candidates))
	for i, c := range candidates {
		out[i] = c.entry.toPayload()
	}
	return out
}

// preferEntry reports whether a should be preferred over b under the §4.7
// tie-break: synced over plain, then longer body, then lower id.
func preferEntry(a, b Entry) bool {
	aSynced, bSynced := a.Synced != "", b.Synced != ""
	if aSynced != bSynced {
		return aSynced
	}
	aLen, bLen := len(a.Synced)+len(a.Plain), len(b.Synced)+len(b.Plain)
	if aLen != bLen {
		return aLen > bLen
	}
	return a.ID < b.ID
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	err := rows.Scan(&e.ID, &e.Title, &e.Artist, &e.Album, &e.Duration, &e.Synced, &e.Plain, &e.Instrumental)
	return e, err
}

// FingerprintKey exposes fingerprint canonicalization so callers building a
// Find query from a fingerprint.Fields value don't duplicate the
// normalization rule.
func FingerprintKey(f fingerprint.Fields) string {
	return fingerprint.Compute(f).Key
}
