// Package fingerprint computes the canonical RequestFingerprint used as the
// cache key across every tier of the acquisition pipeline.
//
// Canonicalization: NFKC normalize, casefold, strip Unicode punctuation,
// collapse whitespace. This mirrors the regex-based normalization the
// library scanner uses for title matching, generalized with golang.org/x/text
// so the result is stable across platforms and locales — it is the one
// place the system fixes a normalization form, and cache keys survive
// across processes, so it must never change silently.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	punctuation   = regexp.MustCompile(`\p{P}`)
	multiSpace    = regexp.MustCompile(`\s+`)
	caseFold      = cases.Fold()
)

// Fields is the subset of Track identity used to build a fingerprint.
type Fields struct {
	Title    string
	Artist   string
	Album    string
	Duration float64 // seconds
}

// Fingerprint is the canonical, hashable key derived from Fields.
type Fingerprint struct {
	Key  string // human-readable canonical form, useful for debugging/logs
	Hash string // hex sha256 of Key, used as the actual cache/shard key
}

// Compute canonicalizes title/artist/album and rounds duration to the
// nearest second, then builds a stable Fingerprint.
func Compute(f Fields) Fingerprint {
	key := strings.Join([]string{
		canonicalize(f.Title),
		canonicalize(f.Artist),
		canonicalize(f.Album),
		fmt.Sprintf("%d", roundSeconds(f.Duration)),
	}, "\x1f")

	sum := sha256.Sum256([]byte(key))
	return Fingerprint{
		Key:  key,
		Hash: hex.EncodeToString(sum[:]),
	}
}

// canonicalize applies NFKC normalization, casefolding, punctuation
// stripping, and whitespace collapsing, in that order.
func canonicalize(s string) string {
	s = norm.NFKC.String(s)
	s = caseFold.String(s)
	s = punctuation.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func roundSeconds(d float64) int64 {
	return int64(d + 0.5)
}

// ShardPrefix returns the first two hex characters of the fingerprint hash,
// used to fan out the local file cache into shard directories.
func (fp Fingerprint) ShardPrefix() string {
	if len(fp.Hash) < 2 {
		return "00"
	}
	return fp.Hash[:2]
}
