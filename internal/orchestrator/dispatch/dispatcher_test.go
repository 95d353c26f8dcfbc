package dispatch

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/subtrans/internal/cache"
	apperrors "github.com/GriffinCanCode/subtrans/internal/errors"
	"github.com/GriffinCanCode/subtrans/internal/ocr"
	"github.com/GriffinCanCode/subtrans/internal/provider"
	"github.com/GriffinCanCode/subtrans/internal/screen"
)

type mockProvider struct {
	text    string
	err     error
	calls   atomic.Int32
	gate    chan struct{} // when set, each call waits for a token
	mu      sync.Mutex
	history [][]string
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) TranslateImage(_ context.Context, jpeg []byte, history []string) (string, error) {
	if m.gate != nil {
		<-m.gate
	}
	m.calls.Add(1)
	m.mu.Lock()
	m.history = append(m.history, history)
	m.mu.Unlock()
	if len(jpeg) == 0 {
		return "", errors.New("empty upload")
	}
	return m.text, m.err
}

func frame(pattern int) *screen.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := color.RGBA{R: 128, G: 128, B: 128, A: 255}
			if pattern == 1 && (x/8+y/8)%2 == 0 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			if pattern == 2 {
				c = color.RGBA{R: uint8(x * 4), B: uint8(255 - x*4), A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return &screen.Frame{Image: img, Region: screen.Region{Width: 64, Height: 64}}
}

func newDispatcher(p provider.Client) *Dispatcher {
	return New(p, cache.NewImages(100), cache.NewTexts(50, 0.92), Options{Workers: 2, QueueSize: 8, MaxWidth: 1280, JPEGQuality: 80})
}

func submitAndWait(t *testing.T, d *Dispatcher, req *Request) Event {
	t.Helper()
	if err := d.Submit(req); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case ev := <-d.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
		return Event{}
	}
}

func TestProviderResultIsCached(t *testing.T) {
	p := &mockProvider{text: "Bonjour"}
	d := newDispatcher(p)
	defer d.Stop()

	ev := submitAndWait(t, d, &Request{Frame: frame(1), OCR: &ocr.Sample{Text: "Hello"}, History: []string{"earlier"}})
	if ev.Err != nil || ev.Text != "Bonjour" || ev.Source != FromProvider {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Hash == nil || ev.RequestID == "" || ev.Timestamp.IsZero() {
		t.Fatalf("event missing hash/id/timestamp: %+v", ev)
	}
	if got, ok := d.images.Get(*ev.Hash); !ok || got != "Bonjour" {
		t.Errorf("image cache = (%q, %v)", got, ok)
	}
	if got, ok := d.texts.Lookup("Hello"); !ok || got != "Bonjour" {
		t.Errorf("text cache = (%q, %v)", got, ok)
	}
	if h := p.history[0]; len(h) != 1 || h[0] != "earlier" {
		t.Errorf("history = %v", h)
	}

	// Same frame again: served from the image cache.
	ev = submitAndWait(t, d, &Request{Frame: frame(1), OCR: &ocr.Sample{Text: "Hello"}})
	if ev.Source != FromImageCache || ev.Text != "Bonjour" {
		t.Errorf("second event = %+v", ev)
	}
	if p.calls.Load() != 1 {
		t.Errorf("provider calls = %d, want 1", p.calls.Load())
	}
}

func TestUnchangedFrameSkipsProvider(t *testing.T) {
	p := &mockProvider{text: "x"}
	d := newDispatcher(p)
	defer d.Stop()

	fp, err := cache.Compute(frame(2).Image)
	if err != nil {
		t.Fatal(err)
	}
	ev := submitAndWait(t, d, &Request{Frame: frame(2), LastHash: &fp})
	if ev.Source != Unchanged || ev.Text != "" || ev.Err != nil {
		t.Errorf("event = %+v", ev)
	}
	if p.calls.Load() != 0 {
		t.Error("provider should not be called for an unchanged frame")
	}
}

func TestTextCacheAutoOnly(t *testing.T) {
	p := &mockProvider{text: "fresh"}
	d := newDispatcher(p)
	defer d.Stop()
	d.texts.Put("The quick brown fox jumps", "cached")

	ev := submitAndWait(t, d, &Request{Frame: frame(1), OCR: &ocr.Sample{Text: "The quick brown fox jumps!"}})
	if ev.Source != FromTextCache || ev.Text != "cached" {
		t.Errorf("auto event = %+v", ev)
	}

	ev = submitAndWait(t, d, &Request{Frame: frame(2), Manual: true, OCR: &ocr.Sample{Text: "The quick brown fox jumps"}})
	if ev.Source != FromProvider || ev.Text != "fresh" {
		t.Errorf("manual event = %+v", ev)
	}
}

func TestManualBypassesImageCache(t *testing.T) {
	p := &mockProvider{text: "again"}
	d := newDispatcher(p)
	defer d.Stop()

	fp, _ := cache.Compute(frame(1).Image)
	d.images.Put(fp, "stale")

	ev := submitAndWait(t, d, &Request{Frame: frame(1), Manual: true, History: []string{"ignored"}})
	if ev.Text != "again" || p.calls.Load() != 1 {
		t.Errorf("manual should force a provider call: %+v", ev)
	}
	if len(p.history[0]) != 0 {
		t.Errorf("manual requests carry no history, got %v", p.history[0])
	}
	if got, _ := d.images.Get(fp); got != "stale" {
		t.Error("manual results must not touch the shared image cache")
	}
}

func TestNoTextIsNotCached(t *testing.T) {
	p := &mockProvider{text: provider.NoText}
	d := newDispatcher(p)
	defer d.Stop()

	ev := submitAndWait(t, d, &Request{Frame: frame(1), OCR: &ocr.Sample{Text: "noise"}})
	if ev.Text != provider.NoText {
		t.Errorf("text = %q", ev.Text)
	}
	if d.images.Len() != 0 || d.texts.Len() != 0 {
		t.Error("sentinel results must not be cached")
	}
}

func TestErrorsCarryTimestamp(t *testing.T) {
	d := newDispatcher(&mockProvider{err: errors.New("boom")})
	defer d.Stop()

	ev := submitAndWait(t, d, &Request{Frame: frame(1)})
	if ev.Err == nil || ev.Timestamp.IsZero() {
		t.Fatalf("event = %+v", ev)
	}

	ev = submitAndWait(t, d, &Request{Manual: true})
	if !apperrors.IsCode(ev.Err, apperrors.CaptureFailed) {
		t.Errorf("missing frame err = %v", ev.Err)
	}

	d.SetProvider(nil)
	ev = submitAndWait(t, d, &Request{Frame: frame(1)})
	if ev.Err == nil || ev.Err.(*apperrors.AppError).Message != MsgNoProvider {
		t.Errorf("no provider err = %v", ev.Err)
	}
}

func TestSubmitTimestampsStrictlyIncrease(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	d := newDispatcher(&mockProvider{text: "x"}).WithClock(NewClock(func() time.Time { return fixed }))

	var last time.Time
	for range 5 {
		req := &Request{Frame: frame(1)}
		if err := d.Submit(req); err != nil {
			t.Fatal(err)
		}
		if !req.Timestamp.After(last) {
			t.Fatalf("timestamp %v not after %v", req.Timestamp, last)
		}
		last = req.Timestamp
	}
	go func() {
		for range d.Events() {
		}
	}()
	d.Stop()
}

func TestQueueFullAndStopped(t *testing.T) {
	gate := make(chan struct{})
	p := &mockProvider{text: "x", gate: gate}
	d := New(p, cache.NewImages(10), cache.NewTexts(10, 0.92), Options{Workers: 2, QueueSize: 1})

	// Two workers block inside the provider, one request waits in the queue.
	var err error
	for i := range 3 {
		if err = d.Submit(&Request{Frame: frame(i % 3)}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if i < 2 {
			waitFor(t, func() bool { return d.Queued() == 0 })
		}
	}
	if err := d.Submit(&Request{Frame: frame(0)}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}

	var got int
	done := make(chan struct{})
	go func() {
		for range d.Events() {
			got++
		}
		close(done)
	}()
	close(gate)
	d.Stop()
	<-done
	if got != 3 {
		t.Errorf("drained %d events, want 3", got)
	}
	if err := d.Submit(&Request{Frame: frame(0)}); !errors.Is(err, ErrStopped) {
		t.Errorf("err = %v, want ErrStopped", err)
	}
	d.Stop()
}

func TestSetProviderClearsImageCache(t *testing.T) {
	d := newDispatcher(&mockProvider{text: "x"})
	defer d.Stop()
	d.images.Put(cache.Fingerprint(1), "a")
	d.SetProvider(&mockProvider{text: "y"})
	if d.images.Len() != 0 {
		t.Error("image cache should be cleared on provider switch")
	}
	if d.Provider().Name() != "mock" {
		t.Error("provider not swapped")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}
