package deduplication

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Scorer returns a similarity in [0, 1] for two strings
type Scorer func(a, b string) float64

// Similarity returns the sequence matcher ratio (2*M/T) of the two strings after lowercasing and trimming.
// Empty input on either side scores 0.
func Similarity(a, b string) float64 {
	a = normalizeText(a)
	b = normalizeText(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	// Matching block selection depends on operand order; fix the order so the score is symmetric.
	if b < a {
		a, b = b, a
	}

	// Popularity auto-junk would drop frequent runes (spaces) from long bodies and break identity.
	m := difflib.NewMatcherWithJunk(splitRunes(a), splitRunes(b), false, nil)
	return m.Ratio()
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
