// Package history keeps the subtitles the user has been shown: a short
// rolling window fed back to providers as context, and a bounded transcript
// the overlay can reload.
package history

import (
	"strings"
	"sync"
	"time"
)

// Entry is one accepted translation.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Manual    bool      `json:"manual"`
}

// Store is a bounded, ordered list of accepted translations.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	maxSize int
}

// NewStore creates a store keeping at most maxEntries.
func NewStore(maxEntries int) *Store {
	return &Store{entries: make([]Entry, 0, maxEntries), maxSize: max(1, maxEntries)}
}

// Add records text accepted at ts.
func (s *Store) Add(ts time.Time, text string, manual bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{Timestamp: ts, Text: text, Manual: manual})
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
}

// Recent returns the texts of the last n entries, oldest first.
func (s *Store) Recent(n int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := max(0, len(s.entries)-n)
	out := make([]string, 0, len(s.entries)-start)
	for _, e := range s.entries[start:] {
		out = append(out, e.Text)
	}
	return out
}

// Since returns entries accepted within the last d.
func (s *Store) Since(d time.Duration) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := time.Now().Add(-d)
	var out []Entry
	for _, e := range s.entries {
		if !e.Timestamp.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear drops every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = s.entries[:0]
	s.mu.Unlock()
}

// Entries returns a copy of all entries.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
