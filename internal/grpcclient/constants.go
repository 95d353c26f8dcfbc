package grpcclient

import "time"

// Sidecar service naming
const (
	ServiceName     = "subtrans.ocr.v1.OCRService"
	RecognizeMethod = "/" + ServiceName + "/Recognize"
)

// Client configuration defaults
const (
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second

	// One recognition must finish well inside a few monitor ticks.
	DefaultCallTimeout = 3 * time.Second
	HealthCheckTimeout = 2 * time.Second
)
