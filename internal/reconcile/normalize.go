package reconcile

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Normalize folds a raw name to its comparison form: lowercase, punctuation
// stripped, whitespace collapsed to single spaces.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/' || r == '&':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// fuzzyTokenEqual treats two tokens as the same word when they are equal or
// within a small edit distance scaled to token length. Distance 2 is allowed
// only for longer tokens sharing a prefix, which keeps "tomatoes" overlapping
// "tomato" without equating "tomato" and "potato".
func fuzzyTokenEqual(a, b string) bool {
	if a == b {
		return true
	}
	shorter := len(a)
	if len(b) < shorter {
		shorter = len(b)
	}
	if shorter < 4 {
		return false
	}
	d := levenshtein.ComputeDistance(a, b)
	if d <= 1 {
		return true
	}
	return d == 2 && shorter >= 6 && a[:3] == b[:3]
}

// tokenOverlap returns the shared-token fraction relative to the smaller of
// the two token sets, so added qualifiers ("organic tomato" vs "tomato") do
// not dilute the score.
func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	shared := 0
	for _, tok := range small {
		for _, other := range large {
			if fuzzyTokenEqual(tok, other) {
				shared++
				break
			}
		}
	}
	return float64(shared) / float64(len(small))
}

// sortJoin renders a token list order-insensitively for comparison.
func sortJoin(tokens []string) string {
	sorted := append([]string(nil), tokens...)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}

// contains reports whether every token of small has a fuzzy match in large.
func contains(large, small []string) bool {
	if len(small) == 0 || len(small) > len(large) {
		return false
	}
	for _, tok := range small {
		found := false
		for _, other := range large {
			if fuzzyTokenEqual(tok, other) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
