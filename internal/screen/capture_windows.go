//go:build windows

package screen

import (
	"context"
	"errors"
)

type windowsBackend struct{}

// TODO: implement with GDI BitBlt so Windows does not depend on external tools.
func (windowsBackend) grab(context.Context, Region, string) (bool, error) {
	return false, errors.New("windows screen capture not implemented")
}

// New creates a platform-specific region capturer
func New() Capturer { return newCommandCapturer(windowsBackend{}) }
