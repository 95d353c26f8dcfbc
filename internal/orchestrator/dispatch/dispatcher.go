package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/subtrans/internal/cache"
	"github.com/GriffinCanCode/subtrans/internal/config"
	apperrors "github.com/GriffinCanCode/subtrans/internal/errors"
	"github.com/GriffinCanCode/subtrans/internal/provider"
	"github.com/GriffinCanCode/subtrans/internal/syncx"
	"github.com/GriffinCanCode/subtrans/internal/trace"
)

// Messages shown to the user for manual-path failures.
const (
	MsgCaptureFailed  = "Screenshot capture failed"
	MsgNoProvider     = "Translation service not available"
	MsgNoTextDetected = "No text detected in selected area"
)

// Options sizes the pool and the upload encoding.
type Options struct {
	Workers     int
	QueueSize   int
	MaxWidth    int
	JPEGQuality int
}

// OptionsFrom reads dispatcher options from cfg.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Workers:     cfg.Workers(),
		QueueSize:   cfg.Dispatch.QueueSize,
		MaxWidth:    cfg.Image.MaxWidth,
		JPEGQuality: cfg.Image.JPEGQuality,
	}
}

// Dispatcher owns the worker pool. Workers share the image and text caches;
// the provider can be swapped while jobs are in flight.
type Dispatcher struct {
	opts     Options
	provider *syncx.Value[provider.Client]
	images   *cache.Images
	texts    *cache.Texts
	clock    *Clock

	mu     sync.RWMutex
	closed bool
	queue  chan *Request
	events chan Event
	wg     sync.WaitGroup
}

// New starts a dispatcher. client may be nil until a provider is configured.
func New(client provider.Client, images *cache.Images, texts *cache.Texts, opts Options) *Dispatcher {
	opts.Workers = max(config.MinWorkers, min(opts.Workers, config.MaxWorkers))
	if opts.QueueSize <= 0 {
		opts.QueueSize = config.DefaultQueueSize
	}
	d := &Dispatcher{
		opts:     opts,
		provider: syncx.NewValue(client),
		images:   images,
		texts:    texts,
		clock:    NewClock(nil),
		queue:    make(chan *Request, opts.QueueSize),
		events:   make(chan Event, opts.QueueSize+opts.Workers),
	}
	for range opts.Workers {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// WithClock replaces the request clock (tests). Call before Submit.
func (d *Dispatcher) WithClock(c *Clock) *Dispatcher {
	d.clock = c
	return d
}

// Events delivers one event per accepted request. It is closed by Stop once
// every queued request has finished, so the consumer must keep draining it.
func (d *Dispatcher) Events() <-chan Event { return d.events }

// Workers returns the pool size.
func (d *Dispatcher) Workers() int { return d.opts.Workers }

// Queued returns the number of requests waiting for a worker.
func (d *Dispatcher) Queued() int { return len(d.queue) }

// Provider returns the current provider, or nil.
func (d *Dispatcher) Provider() provider.Client { return d.provider.Load() }

// SetProvider swaps the provider and drops the image cache, whose entries
// were produced by the previous one.
func (d *Dispatcher) SetProvider(client provider.Client) {
	prev := d.provider.Swap(client)
	d.images.Clear()
	slog.Info("translation provider changed", "from", clientName(prev), "to", clientName(client))
}

func clientName(c provider.Client) string {
	if c == nil {
		return "none"
	}
	return c.Name()
}

// ResetTextCache forgets near-duplicate text matches (new monitor session).
func (d *Dispatcher) ResetTextCache() { d.texts.Clear() }

// Submit stamps req with an ID (if empty) and a timestamp and queues it. It
// never blocks.
func (d *Dispatcher) Submit(req *Request) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrStopped
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Timestamp = d.clock.Next()
	select {
	case d.queue <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new work, lets queued and in-flight requests finish, then
// closes Events. It is safe to call more than once.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	close(d.events)
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for req := range d.queue {
		d.events <- d.process(req)
	}
}

func (d *Dispatcher) process(req *Request) Event {
	ctx := trace.WithRequest(context.Background(), req.ID)
	ctx, span := trace.StartSpan(ctx, "dispatch.translate")
	defer span.End()
	span.SetAttr("manual", req.Manual)
	log := trace.Logger(ctx)

	ev := Event{RequestID: req.ID, Timestamp: req.Timestamp, Manual: req.Manual}
	if req.Frame == nil || req.Frame.Image == nil {
		ev.Err = apperrors.New(apperrors.CaptureFailed, MsgCaptureFailed)
		return ev
	}
	client := d.provider.Load()
	if client == nil {
		ev.Err = apperrors.New(apperrors.ConfigMissing, MsgNoProvider)
		return ev
	}

	images := d.images
	if req.Manual {
		images = cache.NewImages(1)
	}

	if fp, err := cache.Compute(req.Frame.Image); err != nil {
		log.Warn("fingerprint failed", "error", err)
	} else {
		ev.Hash = &fp
		span.SetAttr("hash", fp.String())
		if req.LastHash != nil && fp.Equal(*req.LastHash) {
			ev.Source = Unchanged
			return ev
		}
		if text, ok := images.Get(fp); ok {
			ev.Text, ev.Source = text, FromImageCache
			return ev
		}
	}

	ocrText := ""
	if req.OCR != nil {
		ocrText = strings.TrimSpace(req.OCR.Text)
	}
	if !req.Manual && ocrText != "" {
		if text, ok := d.texts.Lookup(ocrText); ok {
			ev.Text, ev.Source = text, FromTextCache
			if ev.Hash != nil {
				images.Put(*ev.Hash, text)
			}
			return ev
		}
	}

	jpeg, err := provider.EncodeJPEG(req.Frame.Image, d.opts.MaxWidth, d.opts.JPEGQuality)
	if err != nil {
		ev.Err = apperrors.Wrap(err, apperrors.CaptureFailed, "encode frame")
		return ev
	}
	history := req.History
	if req.Manual {
		history = nil
	}
	text, err := client.TranslateImage(ctx, jpeg, history)
	if err != nil {
		log.Warn("translation failed", "provider", client.Name(), "error", err)
		span.SetAttr("error", err.Error())
		ev.Err = err
		return ev
	}
	text = strings.TrimSpace(text)
	ev.Text, ev.Source = text, FromProvider
	if text == "" || text == provider.NoText {
		return ev
	}
	if ev.Hash != nil {
		images.Put(*ev.Hash, text)
	}
	if !req.Manual && ocrText != "" {
		d.texts.Put(ocrText, text)
	}
	log.Info("translated", "provider", client.Name(), "duration", span.Duration(), "chars", len(text))
	return ev
}
