// Package dispatch runs translation requests on a bounded worker pool and
// reports each outcome on a single event channel.
package dispatch

import (
	"errors"
	"sync"
	"time"

	"github.com/GriffinCanCode/subtrans/internal/cache"
	"github.com/GriffinCanCode/subtrans/internal/ocr"
	"github.com/GriffinCanCode/subtrans/internal/screen"
)

var (
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("dispatcher stopped")
	// ErrQueueFull is returned when the request queue has no room.
	ErrQueueFull = errors.New("translation queue full")
)

// Request is one unit of work. It must not be modified after Submit.
type Request struct {
	ID        string
	Region    screen.Region
	Frame     *screen.Frame
	OCR       *ocr.Sample // set by the monitor, nil for manual requests
	Manual    bool
	LastHash  *cache.Fingerprint
	History   []string
	Timestamp time.Time // stamped by Submit
}

// Source says where a result's text came from.
type Source int

const (
	FromProvider Source = iota
	FromImageCache
	FromTextCache
	Unchanged // frame identical to the last processed one
)

func (s Source) String() string {
	return [...]string{"provider", "image_cache", "text_cache", "unchanged"}[s]
}

// Event is the outcome of one request: a result, or an error when Err is set.
// Timestamp always equals the request's.
type Event struct {
	RequestID string
	Timestamp time.Time
	Manual    bool
	Text      string
	Hash      *cache.Fingerprint
	Source    Source
	Err       error
}

// Clock hands out strictly increasing timestamps so no two requests tie.
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewClock creates a clock over now (time.Now when nil).
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Next returns a timestamp after every previous one.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().Round(0)
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t
}
