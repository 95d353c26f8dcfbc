// Package syncx provides extended synchronization primitives
package syncx

import "sync"

// Value guards a value with an RWMutex and scoped helpers.
type Value[T any] struct {
	mu sync.RWMutex
	v  T
}

// NewValue creates a guarded value.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{v: initial}
}

// Load returns a copy of the value.
func (g *Value[T]) Load() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.v
}

// Store replaces the value.
func (g *Value[T]) Store(v T) {
	g.mu.Lock()
	g.v = v
	g.mu.Unlock()
}

// Swap replaces the value and returns the previous one.
func (g *Value[T]) Swap(v T) T {
	g.mu.Lock()
	defer g.mu.Unlock()
	old := g.v
	g.v = v
	return old
}
