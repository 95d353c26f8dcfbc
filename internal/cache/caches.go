package cache

import (
	"strings"

	"github.com/GriffinCanCode/subtrans/internal/textsim"
)

// Images maps frame fingerprints to translations.
type Images = FIFO[Fingerprint, string]

// NewImages creates an image cache bounded at max entries.
func NewImages(max int) *Images { return NewFIFO[Fingerprint, string](max) }

// Texts maps raw OCR text to translations and answers near-duplicate lookups.
type Texts struct {
	entries   *FIFO[string, string]
	threshold float64
}

// NewTexts creates a text cache bounded at max entries that treats OCR text
// with similarity >= threshold as the same line.
func NewTexts(max int, threshold float64) *Texts {
	return &Texts{entries: NewFIFO[string, string](max), threshold: threshold}
}

// Lookup returns the translation of the most recent entry similar to text.
func (t *Texts) Lookup(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	if v, ok := t.entries.Get(text); ok {
		return v, true
	}
	var (
		hit   string
		found bool
	)
	t.entries.newestFirst(func(k, v string) bool {
		if textsim.Similar(text, k, t.threshold) {
			hit, found = v, true
			return false
		}
		return true
	})
	return hit, found
}

// Put records the translation of text.
func (t *Texts) Put(text, translation string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	t.entries.Put(text, translation)
}

// Len returns the number of entries.
func (t *Texts) Len() int { return t.entries.Len() }

// Clear drops every entry.
func (t *Texts) Clear() { t.entries.Clear() }
