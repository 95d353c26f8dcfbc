// Package monitor watches a screen region and decides when its subtitle text
// has settled into a new value worth translating.
package monitor

import (
	"strings"
	"time"

	"github.com/GriffinCanCode/subtrans/internal/config"
	"github.com/GriffinCanCode/subtrans/internal/textsim"
)

// State is where the last tick left the monitor.
type State int

const (
	Idle State = iota
	Sampling
	Stable
	Duplicate
	Unstable
)

func (s State) String() string {
	return [...]string{"idle", "sampling", "stable", "duplicate", "unstable"}[s]
}

// Options tunes change detection.
type Options struct {
	Interval            time.Duration
	Debounce            time.Duration
	SimilarityThreshold float64
	DuplicateRatio      float64
	StabilityFrames     int
	QuickAppearance     bool
}

// OptionsFrom reads monitor options from cfg.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Interval:            cfg.Interval(),
		Debounce:            cfg.Debounce(),
		SimilarityThreshold: cfg.OCR.SimilarityThreshold,
		DuplicateRatio:      cfg.OCR.DuplicateRatio,
		StabilityFrames:     cfg.StabilityFrames(),
		QuickAppearance:     cfg.OCR.QuickAppearance,
	}
}

// Decision is the outcome of one observation.
type Decision struct {
	State      State
	Emit       bool
	Debounced  bool    // stable and new, but too soon after the last emission
	Similarity float64 // current vs previous sample
}

// Detector is the pure stability/duplicate/debounce filter. It does no I/O
// and is not safe for concurrent use; one monitor owns one detector.
type Detector struct {
	opts       Options
	similarity func(a, b string) float64

	window      []string
	appeared    bool
	lastEmitted string
	lastEmitAt  time.Time
}

// NewDetector creates a detector. StabilityFrames is clamped to 2..4.
func NewDetector(opts Options) *Detector {
	opts.StabilityFrames = max(config.MinStabilityFrames, min(opts.StabilityFrames, config.MaxStabilityFrames))
	return &Detector{
		opts:       opts,
		similarity: textsim.Ratio,
		window:     make([]string, 0, opts.StabilityFrames),
	}
}

// WithSimilarity replaces the similarity function (tests).
func (d *Detector) WithSimilarity(fn func(a, b string) float64) *Detector {
	d.similarity = fn
	return d
}

// Window returns a copy of the stability window, oldest first.
func (d *Detector) Window() []string { return append([]string(nil), d.window...) }

// Reset forgets the window and emission history.
func (d *Detector) Reset() {
	d.window = d.window[:0]
	d.appeared = false
	d.lastEmitted = ""
	d.lastEmitAt = time.Time{}
}

func (d *Detector) push(text string) {
	if len(d.window) == d.opts.StabilityFrames {
		copy(d.window, d.window[1:])
		d.window = d.window[:len(d.window)-1]
	}
	d.window = append(d.window, text)
}

// Observe feeds one OCR sample taken at now and reports whether it should be
// emitted.
func (d *Detector) Observe(text string, now time.Time) Decision {
	text = strings.TrimSpace(text)
	prevEmpty := len(d.window) == 0 || d.window[len(d.window)-1] == ""
	d.push(text)

	if text == "" {
		d.appeared = false
		return Decision{State: Sampling}
	}
	quick := d.appeared
	d.appeared = prevEmpty

	var dec Decision
	if n := len(d.window); n >= 2 {
		dec.Similarity = d.similarity(d.window[n-2], text)
	}

	if d.lastEmitted != "" && d.similarity(text, d.lastEmitted) >= d.opts.DuplicateRatio {
		dec.State = Duplicate
		return dec
	}
	stable := d.stable()
	if !stable && quick && d.opts.QuickAppearance {
		stable = dec.Similarity >= d.opts.SimilarityThreshold
	}
	if !stable {
		dec.State = Unstable
		return dec
	}

	dec.State = Stable
	if !d.lastEmitAt.IsZero() && now.Sub(d.lastEmitAt) < d.opts.Debounce {
		dec.Debounced = true
		return dec
	}
	d.lastEmitted = text
	d.lastEmitAt = now
	d.appeared = false
	dec.Emit = true
	return dec
}

// stable reports whether the window is full and every adjacent pair is
// similar enough.
func (d *Detector) stable() bool {
	if len(d.window) < d.opts.StabilityFrames {
		return false
	}
	for i := 1; i < len(d.window); i++ {
		if d.similarity(d.window[i-1], d.window[i]) < d.opts.SimilarityThreshold {
			return false
		}
	}
	return true
}
