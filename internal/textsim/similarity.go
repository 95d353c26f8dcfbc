// Package textsim measures how alike two OCR readings are.
package textsim

import (
	"github.com/pmezard/go-difflib/difflib"
)

// Ratio returns the SequenceMatcher similarity 2*M/T of a and b, compared
// rune by rune. Two empty strings are identical (1.0).
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	return difflib.NewMatcher(runes(a), runes(b)).Ratio()
}

// Similar reports whether Ratio(a, b) >= threshold.
func Similar(a, b string, threshold float64) bool {
	return Ratio(a, b) >= threshold
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
