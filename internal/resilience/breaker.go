// Package resilience provides fault tolerance patterns
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State represents circuit breaker state
type State uint32

const (
	Closed   State = iota // normal operation
	Open                  // failing fast
	HalfOpen              // probing recovery
)

func (s State) String() string {
	return [...]string{"closed", "open", "half-open"}[s]
}

// ErrOpen is returned by Allow while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker open")

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	name string
	cfg  Config
	now  func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
}

// New creates a named breaker.
func New(name string, cfg Config) *Breaker {
	return &Breaker{name: name, cfg: cfg.withDefaults(), now: time.Now}
}

// WithClock replaces the time source (tests).
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.now = now
	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// Allow returns nil if a call may proceed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open {
		if b.now().Sub(b.lastFailure) < b.cfg.ResetTimeout {
			return ErrOpen
		}
		b.transitionLocked(HalfOpen)
	}
	return nil
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.HalfOpenSuccesses {
			b.transitionLocked(Closed)
		}
	case Closed:
		b.failures = 0
	}
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFailure = b.now()
	b.failures++
	switch b.state {
	case HalfOpen:
		b.transitionLocked(Open)
	case Closed:
		if b.failures >= b.cfg.Threshold {
			b.transitionLocked(Open)
		}
	}
}

// State returns current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionLocked(Closed)
}

func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.successes = 0
	switch to {
	case Closed:
		b.failures = 0
		slog.Info("circuit breaker closed", "name", b.name)
	case Open:
		slog.Warn("circuit breaker opened", "name", b.name, "failures", b.failures)
	case HalfOpen:
		slog.Info("circuit breaker half-open", "name", b.name)
	}
}
