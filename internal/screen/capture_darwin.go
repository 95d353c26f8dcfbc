//go:build darwin

package screen

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

type darwinBackend struct{}

func (darwinBackend) grab(ctx context.Context, r Region, dest string) (bool, error) {
	cmd := exec.CommandContext(ctx, "screencapture", "-x", "-t", "png", "-R", r.String(), dest)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return false, fmt.Errorf("screencapture: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return false, nil
}

// New creates a platform-specific region capturer
func New() Capturer { return newCommandCapturer(darwinBackend{}) }
