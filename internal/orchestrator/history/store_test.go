package history

import (
	"testing"
	"time"
)

func TestStoreAdd(t *testing.T) {
	s := NewStore(30)
	s.Add(time.Now(), "  Hello  ", false)
	s.Add(time.Now(), "   ", false)

	entries := s.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Text != "Hello" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestStoreMaxSize(t *testing.T) {
	s := NewStore(5)
	for i := 0; i < 10; i++ {
		s.Add(time.Now(), string(rune('a'+i)), false)
	}
	if s.Len() != 5 {
		t.Errorf("expected 5 entries, got %d", s.Len())
	}
	if got := s.Entries()[0].Text; got != "f" {
		t.Errorf("oldest kept = %q, want f", got)
	}
}

func TestRecent(t *testing.T) {
	s := NewStore(10)
	for _, text := range []string{"one", "two", "three", "four"} {
		s.Add(time.Now(), text, false)
	}
	got := s.Recent(3)
	want := []string{"two", "three", "four"}
	if len(got) != len(want) {
		t.Fatalf("Recent(3) = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Recent(3) = %v, want %v", got, want)
		}
	}
	if len(NewStore(3).Recent(3)) != 0 {
		t.Error("empty store should return no context")
	}
}

func TestSince(t *testing.T) {
	s := NewStore(10)
	s.Add(time.Now().Add(-5*time.Minute), "old", false)
	s.Add(time.Now(), "new", true)

	got := s.Since(time.Minute)
	if len(got) != 1 || got[0].Text != "new" || !got[0].Manual {
		t.Errorf("Since(1m) = %+v", got)
	}
	s.Clear()
	if s.Len() != 0 {
		t.Error("Clear should empty the store")
	}
}
