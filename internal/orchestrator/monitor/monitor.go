package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/subtrans/internal/ocr"
	"github.com/GriffinCanCode/subtrans/internal/screen"
	"github.com/GriffinCanCode/subtrans/internal/trace"
)

// Event is emitted when the region's text settles into a new value.
type Event struct {
	Frame  *screen.Frame
	Sample ocr.Sample
	At     time.Time
}

// Sink receives emitted events. It is called from the monitor goroutine and
// must not block for long.
type Sink func(Event)

// Monitor samples one region on a fixed interval.
type Monitor struct {
	region    screen.Region
	lang      string
	capturer  screen.Capturer
	extractor ocr.Extractor
	detector  *Detector
	sink      Sink
	interval  time.Duration
	now       func() time.Time

	state   atomic.Int32
	paused  atomic.Bool
	stopped atomic.Bool
	stopCh  chan struct{}
	stop    sync.Once
	done    chan struct{}
}

// New creates a monitor for region. lang is the OCR source language.
func New(region screen.Region, lang string, capturer screen.Capturer, extractor ocr.Extractor, opts Options, sink Sink) *Monitor {
	return &Monitor{
		region:    region,
		lang:      lang,
		capturer:  capturer,
		extractor: extractor,
		detector:  NewDetector(opts),
		sink:      sink,
		interval:  opts.Interval,
		now:       time.Now,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// WithClock replaces the time source used for debounce (tests).
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// WithSimilarity replaces the detector's similarity function (tests).
func (m *Monitor) WithSimilarity(fn func(a, b string) float64) *Monitor {
	m.detector.WithSimilarity(fn)
	return m
}

// Region returns the monitored region.
func (m *Monitor) Region() screen.Region { return m.region }

// State returns the state left by the last tick.
func (m *Monitor) State() State { return State(m.state.Load()) }

// Pause suspends or resumes sampling without ending the session.
func (m *Monitor) Pause(paused bool) { m.paused.Store(paused) }

// Paused reports whether sampling is suspended.
func (m *Monitor) Paused() bool { return m.paused.Load() }

// Stop asks the loop to exit. It returns immediately; use Done to wait.
func (m *Monitor) Stop() {
	m.stop.Do(func() {
		m.stopped.Store(true)
		close(m.stopCh)
	})
}

// Done is closed when Run returns.
func (m *Monitor) Done() <-chan struct{} { return m.done }

func (m *Monitor) stopping(ctx context.Context) bool {
	return m.stopped.Load() || ctx.Err() != nil
}

// Run samples until Stop is called or ctx is done. The stop flag is checked
// before every capture and again after OCR, so shutdown waits at most one
// tick plus one OCR call.
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.done)
	ctx, span := trace.StartSpan(ctx, "monitor.session")
	defer span.End()
	span.SetAttr("region", m.region.String())
	log := trace.Logger(ctx).With("region", m.region.String(), "lang", m.lang)
	log.Info("monitor started", "interval", m.interval)
	defer func() {
		m.state.Store(int32(Idle))
		log.Info("monitor stopped")
	}()

	for !m.stopping(ctx) {
		start := m.now()
		if m.paused.Load() {
			m.state.Store(int32(Idle))
			m.sleep(ctx, m.interval)
			continue
		}
		m.state.Store(int32(Sampling))

		frame, err := m.capturer.Capture(ctx, m.region)
		if err != nil || frame == nil {
			log.Debug("capture skipped", "error", err)
			m.sleep(ctx, m.interval-m.now().Sub(start))
			continue
		}

		sample, err := m.extractor.Extract(ctx, frame.Image, m.lang, ocr.Auto)
		if m.stopping(ctx) {
			return
		}
		if err != nil {
			log.Warn("ocr failed", "error", err)
			m.sleep(ctx, m.interval-m.now().Sub(start))
			continue
		}

		now := m.now()
		dec := m.detector.Observe(sample.Text, now)
		m.state.Store(int32(dec.State))
		switch {
		case dec.Emit:
			log.Info("subtitle settled", "engine", sample.Engine, "confidence", sample.Confidence,
				"ocr", sample.Duration, "chars", len(sample.Text))
			m.sink(Event{Frame: frame, Sample: sample, At: now})
		case dec.Debounced:
			log.Debug("settled text debounced")
		case dec.State == Unstable:
			log.Debug("text not settled", "similarity", dec.Similarity)
		}
		m.sleep(ctx, m.interval-m.now().Sub(start))
	}
}

// sleep waits d unless stopped first. d <= 0 returns at once.
func (m *Monitor) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-m.stopCh:
	case <-ctx.Done():
	}
}
