// Package screen provides platform-agnostic region capture
package screen

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidRegion is returned for zero-size or negative regions. No capture
// is attempted.
var ErrInvalidRegion = errors.New("invalid capture region")

// Region is a rectangle in screen pixels.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether the region has a positive area.
func (r Region) Valid() bool { return r.Width > 0 && r.Height > 0 }

func (r Region) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}

// ParseRegion parses "x,y,width,height".
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("region %q: want x,y,width,height", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Region{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	r := Region{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if !r.Valid() {
		return r, ErrInvalidRegion
	}
	return r, nil
}

// Frame is one captured raster. It is owned by whoever called Capture.
type Frame struct {
	Image      *image.RGBA
	Region     Region
	CapturedAt time.Time
}

// Capturer grabs a screen region.
type Capturer interface {
	// Capture returns nil and an error when no frame could be produced;
	// an invalid region yields ErrInvalidRegion without touching the OS.
	Capture(ctx context.Context, region Region) (*Frame, error)
	Close() error
}

// backend writes a screenshot of region to dest using an OS tool. full
// reports that the tool captured the whole screen instead of the region.
type backend interface {
	grab(ctx context.Context, region Region, dest string) (full bool, err error)
}

// commandCapturer shells out to a platform screenshot tool and decodes the
// resulting file.
type commandCapturer struct {
	backend
	tempDir string
}

func newCommandCapturer(b backend) *commandCapturer {
	tmpDir, err := os.MkdirTemp("", "subtrans-screen-*")
	if err != nil {
		slog.Error("failed to create temp dir", "error", err)
		tmpDir = os.TempDir()
	}
	return &commandCapturer{backend: b, tempDir: tmpDir}
}

func (c *commandCapturer) Capture(ctx context.Context, region Region) (*Frame, error) {
	if !region.Valid() {
		return nil, ErrInvalidRegion
	}
	f, err := os.CreateTemp(c.tempDir, "region-*.png")
	if err != nil {
		return nil, fmt.Errorf("capture temp file: %w", err)
	}
	dest := f.Name()
	_ = f.Close()
	defer os.Remove(dest)

	full, err := c.grab(ctx, region, dest)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(dest)
	if err != nil {
		return nil, fmt.Errorf("read screenshot: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	var rgba *image.RGBA
	if full {
		rgba = Crop(img, region)
	} else {
		rgba = toRGBA(img)
	}
	return &Frame{Image: rgba, Region: region, CapturedAt: time.Now()}, nil
}

func (c *commandCapturer) Close() error {
	if c.tempDir == "" || c.tempDir == os.TempDir() {
		return nil
	}
	return os.RemoveAll(filepath.Clean(c.tempDir))
}

// Crop cuts region out of a full-screen image.
func Crop(img image.Image, region Region) *image.RGBA {
	src := img.Bounds()
	rect := image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height).Add(src.Min).Intersect(src)
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
