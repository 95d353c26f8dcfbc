package textsim

import (
	"math"
	"testing"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Hello", "Hello", 1.0},
		{"both empty", "", "", 1.0},
		{"one empty", "Hello", "", 0.0},
		{"disjoint", "abc", "xyz", 0.0},
		{"one extra char", "Hello", "Hello!", 10.0 / 11.0},
		{"cjk runes", "こんにちは", "こんにちわ", 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ratio(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Ratio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRatioSymmetricForSubtitles(t *testing.T) {
	a := "I told you not to come back here."
	b := "I told you not to come back here"
	if Ratio(a, b) < 0.95 {
		t.Errorf("Ratio = %v, want >= 0.95", Ratio(a, b))
	}
	if !Similar(a, b, 0.95) {
		t.Error("Similar should hold at 0.95")
	}
	if Similar(a, "Completely different line", 0.85) {
		t.Error("Similar should not hold for unrelated lines")
	}
}
