// Package ocr extracts subtitle text from captured frames. Two engines are
// supported: a local detector+recognizer served by the OCR sidecar, used for
// CJK sources, and the OS-native recognizer for everything else.
package ocr

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sort"
	"strings"
	"time"

	apperrors "github.com/GriffinCanCode/subtrans/internal/errors"
)

// Engine identifies an OCR backend.
type Engine int

const (
	Auto Engine = iota // pick by language
	Local
	OS
)

func (e Engine) String() string {
	switch e {
	case Local:
		return "local"
	case OS:
		return "os"
	default:
		return "auto"
	}
}

// ErrNoEngine is returned when neither engine is configured.
var ErrNoEngine = errors.New("no ocr engine available")

// Sample is the result of one OCR pass. Empty Text means no text visible.
type Sample struct {
	Text       string
	Confidence float64
	Engine     Engine
	Duration   time.Duration
}

// Line is one recognised text line.
type Line struct {
	Text       string
	Confidence float64
	Top        float64 // vertical centre, used for reading order
}

// Recognizer runs one OCR engine over a prepared image.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, lang string) ([]Line, error)
}

// Extractor turns a frame into a Sample.
type Extractor interface {
	Extract(ctx context.Context, img image.Image, lang string, hint Engine) (Sample, error)
}

// Options tunes local-engine filtering.
type Options struct {
	MinConfidence float64
	MaxLines      int
}

// Router routes frames to an engine by source language and applies the
// engine's preprocessing.
type Router struct {
	local  Recognizer
	native Recognizer
	opts   Options
}

// NewRouter creates a router. Either recognizer may be nil; the other one is
// then used for every language.
func NewRouter(local, native Recognizer, opts Options) *Router {
	if opts.MaxLines < 1 {
		opts.MaxLines = 1
	}
	return &Router{local: local, native: native, opts: opts}
}

// Extract runs OCR on img. Engine failures come back as OCRFailed errors;
// callers skip the tick.
func (r *Router) Extract(ctx context.Context, img image.Image, lang string, hint Engine) (Sample, error) {
	engine, rec := r.pick(lang, hint)
	if rec == nil {
		return Sample{}, apperrors.Wrap(ErrNoEngine, apperrors.OCRFailed, "ocr unavailable")
	}
	if img == nil || img.Bounds().Empty() {
		return Sample{Engine: engine}, nil
	}

	start := time.Now()
	var (
		s   Sample
		err error
	)
	if engine == Local {
		s, err = r.extractLocal(ctx, rec, img, lang)
	} else {
		s, err = r.extractNative(ctx, rec, img, lang)
	}
	s.Engine = engine
	s.Duration = time.Since(start)
	if err != nil {
		return s, apperrors.Wrapf(err, apperrors.OCRFailed, "%s ocr failed", engine).WithMetadata("lang", lang)
	}
	slog.Debug("ocr sample", "engine", engine, "chars", len(s.Text), "confidence", s.Confidence, "duration", s.Duration)
	return s, nil
}

func (r *Router) pick(lang string, hint Engine) (Engine, Recognizer) {
	want := hint
	if want == Auto {
		want = OS
		if IsCJK(lang) {
			want = Local
		}
	}
	switch {
	case want == Local && r.local != nil:
		return Local, r.local
	case want == OS && r.native != nil:
		return OS, r.native
	case r.local != nil:
		return Local, r.local
	case r.native != nil:
		return OS, r.native
	}
	return want, nil
}

func (r *Router) extractLocal(ctx context.Context, rec Recognizer, img image.Image, lang string) (Sample, error) {
	lines, err := rec.Recognize(ctx, PadRGBA(img, LocalPadding), lang)
	if err != nil {
		return Sample{}, err
	}
	usable := lines[:0:0]
	for _, l := range lines {
		if l.Confidence >= r.opts.MinConfidence && strings.TrimSpace(l.Text) != "" {
			usable = append(usable, l)
		}
	}
	if len(usable) == 0 {
		return Sample{}, nil
	}
	sort.SliceStable(usable, func(i, j int) bool { return usable[i].Top < usable[j].Top })
	usable = usable[:min(len(usable), r.opts.MaxLines)]

	texts := make([]string, len(usable))
	var sum float64
	for i, l := range usable {
		texts[i] = strings.TrimSpace(l.Text)
		sum += l.Confidence
	}
	return Sample{
		Text:       strings.Join(texts, "\n"),
		Confidence: sum / float64(len(usable)),
	}, nil
}

// extractNative prepares light-on-dark subtitles for the OS recognizer. It
// reports no confidence of its own, so a fixed 1.0 is used.
func (r *Router) extractNative(ctx context.Context, rec Recognizer, img image.Image, lang string) (Sample, error) {
	lines, err := rec.Recognize(ctx, PrepareNative(img), lang)
	if err != nil {
		return Sample{}, err
	}
	var texts []string
	for _, l := range lines {
		if t := strings.TrimSpace(l.Text); t != "" {
			texts = append(texts, t)
		}
	}
	text := strings.Join(texts, "\n")
	if text == "" {
		return Sample{}, nil
	}
	return Sample{Text: text, Confidence: 1.0}, nil
}
