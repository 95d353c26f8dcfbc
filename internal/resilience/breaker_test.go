package resilience

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg Config) (*Breaker, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	return New("test", cfg).WithClock(clk.now), clk
}

func TestBreakerInitialState(t *testing.T) {
	b := New("gemini", ProviderConfig())
	if b.State() != Closed {
		t.Errorf("initial state = %v, want Closed", b.State())
	}
	if b.Name() != "gemini" {
		t.Errorf("Name = %q", b.Name())
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 3, ResetTimeout: time.Minute})
	for i := 0; i < 3; i++ {
		b.Failure()
	}
	if b.State() != Open {
		t.Errorf("state = %v, want Open", b.State())
	}
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Errorf("Allow() = %v, want ErrOpen", err)
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 2, ResetTimeout: time.Minute})
	b.Failure()
	b.Success()
	b.Failure()
	if b.State() != Closed {
		t.Errorf("state = %v, want Closed", b.State())
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	tests := []struct {
		name      string
		probeErr  error
		wantState State
	}{
		{"probe succeeds", nil, Closed},
		{"probe fails", errors.New("still down"), Open},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, clk := newTestBreaker(Config{Threshold: 1, ResetTimeout: time.Minute, HalfOpenSuccesses: 1})
			b.Failure()
			clk.advance(time.Minute)

			if err := b.Allow(); err != nil {
				t.Fatalf("Allow() = %v, want nil", err)
			}
			if b.State() != HalfOpen {
				t.Fatalf("state = %v, want HalfOpen", b.State())
			}
			if tt.probeErr != nil {
				b.Failure()
			} else {
				b.Success()
			}
			if b.State() != tt.wantState {
				t.Errorf("state = %v, want %v", b.State(), tt.wantState)
			}
		})
	}
}

func TestBreakerReset(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 1, ResetTimeout: time.Hour})
	b.Failure()
	if !errors.Is(b.Allow(), ErrOpen) {
		t.Fatal("breaker should be open")
	}
	b.Reset()
	if b.State() != Closed || b.Allow() != nil {
		t.Errorf("state after reset = %v", b.State())
	}
}
