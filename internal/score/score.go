// Package score implements the composite candidate-ranking function shared
// by the Local Catalog's fuzzy search and the Resolver's remote-search
// fallback (§4.4/§4.7). The edit-distance core is lifted directly from the
// teacher's internal/radio/fuzzy.go (similarity/levenshteinDistance),
// generalized from single-string artist matching to a weighted composite
// over title/artist/album/duration.
package score

import "math"

// Fields is the subset of a candidate's tags the composite score considers.
type Fields struct {
	Title    string
	Artist   string
	Album    string
	Duration float64 // seconds
}

// Weights from §4.4: title 0.5, artist 0.3, album 0.1, duration 0.1.
const (
	weightTitle    = 0.5
	weightArtist   = 0.3
	weightAlbum    = 0.1
	weightDuration = 0.1

	// AcceptThreshold is the minimum composite score the Resolver and
	// Local Catalog accept a fuzzy candidate at (§4.7 steps 5/6).
	AcceptThreshold = 0.7

	// SearchThreshold is the lower bar search() results must clear to be
	// returned at all (§4.4); AcceptThreshold is the stricter bar the
	// Resolver applies before treating a search result as authoritative.
	SearchThreshold = 0.55
)

// Composite computes the weighted similarity of candidate against query.
func Composite(query, candidate Fields) float64 {
	titleScore := Similarity(normalize(query.Title), normalize(candidate.Title))
	artistScore := Similarity(normalize(query.Artist), normalize(candidate.Artist))
	albumScore := Similarity(normalize(query.Album), normalize(candidate.Album))
	durationScore := durationTerm(query.Duration, candidate.Duration)

	return titleScore*weightTitle +
		artistScore*weightArtist +
		albumScore*weightAlbum +
		durationScore*weightDuration
}

// durationTerm implements §4.4's "1 - min(|delta|, 10)/10" term. A zero
// query or candidate duration (unknown) scores a neutral 0.5 rather than
// penalizing a candidate for the absence of data.
func durationTerm(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0.5
	}
	delta := math.Abs(a - b)
	return 1 - min(delta, 10)/10
}

// Similarity calculates normalized Levenshtein similarity in [0,1]; 1 means
// identical. Grounded on the teacher's radio.similarity.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	dist := levenshteinDistance(a, b)
	maxLen := max(len([]rune(a)), len([]rune(b)))
	return 1.0 - float64(dist)/float64(maxLen)
}

// levenshteinDistance calculates the edit distance between two strings,
// unchanged from the teacher's radio.levenshteinDistance.
func levenshteinDistance(a, b string) int {
	if a == "" {
		return len([]rune(b))
	}
	if b == "" {
		return len([]rune(a))
	}

	runesA := []rune(a)
	runesB := []rune(b)
	lenA := len(runesA)
	lenB := len(runesB)

	prev := make([]int, lenB+1)
	curr := make([]int, lenB+1)

	for j := 0; j <= lenB; j++ {
		prev[j] = j
	}

	for i := 1; i <= lenA; i++ {
		curr[0] = i
		for j := 1; j <= lenB; j++ {
			cost := 1
			if runesA[i-1] == runesB[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,
				curr[j-1]+1,
				prev[j-1]+cost,
			)
		}
		prev, curr = curr, prev
	}

	return prev[lenB]
}

func normalize(s string) string {
	out := make([]rune, 0, len(s))
	lastSpace := true
	for _, r := range s {
		switch {
		case isWordRune(r):
			out = append(out, toLower(r))
			lastSpace = false
		case r == ' ' || r == '-' || r == '_':
			if !lastSpace {
				out = append(out, ' ')
				lastSpace = true
			}
		}
	}
	for len(out) > 0 && out[len(out)-1] == ' ' {
		out = out[:len(out)-1]
	}
	return string(out)
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r > 127
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
