package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"
)

// DefaultPageSegMode treats the frame as one uniform block of text.
const DefaultPageSegMode = 6

type runFunc func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)

// Tesseract drives the tesseract CLI as the OS-native recognizer.
type Tesseract struct {
	Binary string
	PSM    int
	run    runFunc
}

// NewTesseract creates a recognizer calling binary.
func NewTesseract(binary string) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	return &Tesseract{Binary: binary, PSM: DefaultPageSegMode, run: runCommand}
}

// Available reports whether the binary is on PATH.
func (t *Tesseract) Available() bool {
	_, err := exec.LookPath(t.Binary)
	return err == nil
}

// Recognize pipes img through tesseract and returns one Line per output line.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, lang string) ([]Line, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	args := []string{"stdin", "stdout", "-l", TesseractLang(lang), "--psm", strconv.Itoa(t.PSM)}
	out, err := t.run(ctx, t.Binary, args, buf.Bytes())
	if err != nil {
		return nil, err
	}

	var lines []Line
	for _, raw := range strings.Split(string(out), "\n") {
		text := strings.TrimSpace(strings.ReplaceAll(raw, "\f", ""))
		if text == "" {
			continue
		}
		lines = append(lines, Line{Text: text, Confidence: 1.0, Top: float64(len(lines))})
	}
	return lines, nil
}

func runCommand(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}
