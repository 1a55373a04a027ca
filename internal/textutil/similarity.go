// Package textutil provides the string-distance primitives shared by the
// vendor matcher and the adaptive correction engine.
package textutil

import (
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
)

// Similarity returns the normalized Levenshtein similarity between a and b:
// 1 - editDistance/max(len). Both inputs are compared as-is; callers that
// want case- or punctuation-insensitive behaviour normalize first.
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, nil)
}

// Distance returns the plain Levenshtein edit distance.
func Distance(a, b string) int {
	return levenshtein.Distance(a, b, nil)
}

// Normalize lower-cases s, replaces punctuation with spaces and collapses
// runs of whitespace. This is the canonical form for all similarity
// comparisons in matching.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// TokenSimilarity compares two strings token-wise: every token of the
// shorter token set is matched against its best counterpart in the other,
// and the scores are averaged. More tolerant of word reordering than plain
// Similarity ("Acme GmbH Berlin" vs "Berlin Acme GmbH").
func TokenSimilarity(a, b string) float64 {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return Similarity(a, b)
	}
	if len(tb) < len(ta) {
		ta, tb = tb, ta
	}
	var sum float64
	for _, t := range ta {
		best := 0.0
		for _, u := range tb {
			if s := Similarity(t, u); s > best {
				best = s
			}
		}
		sum += best
	}
	score := sum / float64(len(ta))
	// blend with the whole-string score so token matches on fragments do
	// not dominate completely different strings
	if whole := Similarity(a, b); whole > score {
		score = whole
	}
	return score
}
