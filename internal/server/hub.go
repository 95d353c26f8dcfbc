package server

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/subtrans/internal/display"
)

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	limit      int
	window     time.Duration
	now        func() time.Time
	timestamps []time.Time
	mu         sync.Mutex
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{limit: limit, window: window, now: time.Now}
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-r.window)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= r.limit {
		return false
	}
	r.timestamps = append(r.timestamps, now)
	return true
}

// client is one overlay connection. A single writer drains queue, so the
// socket sees messages in the order they were queued.
type client struct {
	conn    *websocket.Conn
	limiter *rateLimiter
	queue   chan any
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn:    conn,
		limiter: newRateLimiter(RateLimitMessages, RateLimitWindow),
		queue:   make(chan any, ClientQueueSize),
		done:    make(chan struct{}),
	}
}

// send queues v without blocking. When the queue is full the oldest message
// is dropped: a slow overlay only needs the newest subtitle.
func (c *client) send(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		select {
		case c.queue <- v:
			return
		default:
		}
		select {
		case <-c.queue:
		default:
		}
	}
}

func (c *client) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-c.queue:
			wctx, cancel := context.WithTimeout(ctx, WriteTimeout)
			_ = wsjson.Write(wctx, c.conn, v)
			cancel()
		}
	}
}

// Hub is the display sink for overlay clients. Every message is broadcast
// to all connected sockets; a client that connects late gets the last
// translation first.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
	last    *display.Message
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*client)}
}

// Show implements display.Sink. It never blocks on a slow client.
func (h *Hub) Show(msg display.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if msg.Kind == display.KindTranslation {
		m := msg
		h.last = &m
	}
	for _, c := range h.clients {
		c.send(msg)
	}
}

// Clients returns the number of connected sockets.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// add registers conn and starts its writer. The replay of the last
// translation is queued before any later broadcast can be.
func (h *Hub) add(conn *websocket.Conn) *client {
	c := newClient(conn)
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	h.mu.Lock()
	if h.last != nil {
		c.send(*h.last)
	}
	h.clients[conn] = c
	h.mu.Unlock()

	go c.run(ctx)
	return c
}

// remove unregisters c and waits for its writer to exit.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c.conn)
	h.mu.Unlock()
	c.cancel()
	<-c.done
}
