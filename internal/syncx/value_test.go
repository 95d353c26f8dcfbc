package syncx

import (
	"sync"
	"testing"
)

func TestValueLoadStoreSwap(t *testing.T) {
	v := NewValue("gemini")
	if got := v.Load(); got != "gemini" {
		t.Errorf("Load = %q, want gemini", got)
	}
	if old := v.Swap("groq"); old != "gemini" {
		t.Errorf("Swap returned %q, want gemini", old)
	}
	v.Store("cerebras")
	if got := v.Load(); got != "cerebras" {
		t.Errorf("Load = %q, want cerebras", got)
	}
}

func TestValueConcurrentSwap(t *testing.T) {
	v := NewValue(-1)
	seen := make(chan int, 50)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- v.Swap(i)
		}()
	}
	wg.Wait()
	close(seen)

	// Every stored value except the final one is returned by exactly one Swap.
	got := map[int]bool{v.Load(): true}
	for old := range seen {
		if got[old] {
			t.Fatalf("value %d observed twice", old)
		}
		got[old] = true
	}
	if len(got) != 51 {
		t.Errorf("saw %d distinct values, want 51", len(got))
	}
}
