package cache

import "sync"

// FIFO is a bounded map evicting the oldest inserted key first. Updating an
// existing key keeps its original position.
type FIFO[K comparable, V any] struct {
	mu    sync.Mutex
	max   int
	order []K
	items map[K]V
}

// NewFIFO creates a FIFO holding at most max entries (minimum 1).
func NewFIFO[K comparable, V any](max int) *FIFO[K, V] {
	if max < 1 {
		max = 1
	}
	return &FIFO[K, V]{max: max, items: make(map[K]V, max)}
}

// Get returns the value stored for k.
func (c *FIFO[K, V]) Get(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[k]
	return v, ok
}

// Put inserts or updates k and evicts the oldest entries past the bound.
// It returns the number of evicted entries.
func (c *FIFO[K, V]) Put(k K, v V) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[k]; ok {
		c.items[k] = v
		return 0
	}
	c.items[k] = v
	c.order = append(c.order, k)

	evicted := 0
	for len(c.order) > c.max {
		delete(c.items, c.order[0])
		c.order = c.order[1:]
		evicted++
	}
	if evicted > 0 && cap(c.order) > 4*c.max {
		c.order = append(make([]K, 0, c.max+1), c.order...)
	}
	return evicted
}

// Len returns the number of entries.
func (c *FIFO[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Max returns the configured bound.
func (c *FIFO[K, V]) Max() int { return c.max }

// Keys returns keys oldest first.
func (c *FIFO[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]K(nil), c.order...)
}

// Clear drops every entry.
func (c *FIFO[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.items = make(map[K]V, c.max)
}

// newestFirst calls fn for each entry from newest to oldest until fn returns false.
func (c *FIFO[K, V]) newestFirst(fn func(K, V) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.order) - 1; i >= 0; i-- {
		k := c.order[i]
		if !fn(k, c.items[k]) {
			return
		}
	}
}
