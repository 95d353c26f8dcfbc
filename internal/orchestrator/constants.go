package orchestrator

import "time"

// Controller configuration constants
const (
	// Accepted subtitles kept for the transcript endpoint.
	HistoryMaxEntries = 200

	// How long Close waits for a monitor to finish its current tick.
	MonitorStopTimeout = 2 * time.Second
)

// Overlay status lines for the auto mode pause toggle.
const (
	MsgAutoPaused  = "Auto translation paused"
	MsgAutoResumed = "Auto translation resumed"
)
