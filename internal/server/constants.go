// Package server exposes the controller over HTTP and streams display
// messages to overlay clients over WebSocket.
package server

import "time"

// Server configuration constants
const (
	// Per-connection sliding window for client messages.
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// Broadcast writes slower than this drop the message for that client.
	WriteTimeout = 2 * time.Second

	// Messages queued per client before the oldest is dropped.
	ClientQueueSize = 64

	// Request bodies are small JSON objects.
	MaxBodyBytes = 64 << 10

	// Default lookback of GET /api/transcript.
	DefaultTranscriptWindow = 5 * time.Minute
)
