package orchestrator

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/subtrans/internal/config"
	"github.com/GriffinCanCode/subtrans/internal/display"
	apperrors "github.com/GriffinCanCode/subtrans/internal/errors"
	"github.com/GriffinCanCode/subtrans/internal/keyring"
	"github.com/GriffinCanCode/subtrans/internal/ocr"
	"github.com/GriffinCanCode/subtrans/internal/orchestrator/dispatch"
	"github.com/GriffinCanCode/subtrans/internal/provider"
	"github.com/GriffinCanCode/subtrans/internal/screen"
)

type fakeCapturer struct {
	err error
}

func (f *fakeCapturer) Capture(_ context.Context, r screen.Region) (*screen.Frame, error) {
	if f.err != nil {
		return nil, f.err
	}
	img := image.NewRGBA(image.Rect(0, 0, 48, 16))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(8, 4, 40, 12), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return &screen.Frame{Image: img, Region: r, CapturedAt: time.Now()}, nil
}

func (f *fakeCapturer) Close() error { return nil }

// scriptedOCR returns texts in order, then repeats the last one.
type scriptedOCR struct {
	mu    sync.Mutex
	texts []string
	i     int
}

func (s *scriptedOCR) Extract(context.Context, image.Image, string, ocr.Engine) (ocr.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := s.texts[min(s.i, len(s.texts)-1)]
	s.i++
	return ocr.Sample{Text: text, Confidence: 1, Engine: ocr.OS}, nil
}

type fakeClient struct {
	name  string
	text  string
	err   error
	calls *atomic.Int32
}

func (f fakeClient) Name() string { return f.name }

func (f fakeClient) TranslateImage(context.Context, []byte, []string) (string, error) {
	f.calls.Add(1)
	return f.text, f.err
}

type recorder struct {
	mu   sync.Mutex
	msgs []display.Message
}

func (r *recorder) Show(m display.Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, m)
	r.mu.Unlock()
}

func (r *recorder) find(kind display.Kind) []display.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []display.Message
	for _, m := range r.msgs {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) wait(t *testing.T, kind display.Kind) display.Message {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got := r.find(kind); len(got) > 0 {
			return got[0]
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("no %s message", kind)
	return display.Message{}
}

func testConfig(keys map[string]string) *config.Config {
	cfg := config.Defaults()
	for name, key := range keys {
		p := cfg.Providers[name]
		p.APIKey = key
		cfg.Providers[name] = p
	}
	cfg.OCR.IntervalSeconds = 0.001
	cfg.OCR.DebounceSeconds = 0
	return cfg
}

type harness struct {
	mgr   *Manager
	rec   *recorder
	ocr   *scriptedOCR
	calls *atomic.Int32
}

func newHarness(t *testing.T, store *config.Store, capErr error, texts ...string) *harness {
	t.Helper()
	if len(texts) == 0 {
		texts = []string{""}
	}
	h := &harness{rec: &recorder{}, ocr: &scriptedOCR{texts: texts}, calls: &atomic.Int32{}}
	h.mgr = New(store, Deps{
		Capturer: &fakeCapturer{err: capErr},
		OCR:      h.ocr,
		Sink:     h.rec,
		NewClient: func(_ *config.Config, name, _ string) (provider.Client, error) {
			return fakeClient{name: name, text: "Bonjour", calls: h.calls}, nil
		},
	})
	t.Cleanup(func() { _ = h.mgr.Close() })
	return h
}

func TestSettledSubtitleTranslatedOnce(t *testing.T) {
	store := config.NewStore("", testConfig(map[string]string{"gemini": "gemini-key-0001"}))
	const line = "Hello world, how are you today"
	h := newHarness(t, store, nil, line, line, line, line, line, line+"!", line+"!", line+"!")

	if _, err := h.mgr.StartMonitor(screen.Region{Width: 48, Height: 16}, "en"); err != nil {
		t.Fatal(err)
	}
	msg := h.rec.wait(t, display.KindTranslation)
	if msg.Text != "Bonjour" || msg.Source != dispatch.FromProvider.String() {
		t.Errorf("message = %+v", msg)
	}

	// The near-identical variant stays on screen and counts as a duplicate.
	time.Sleep(60 * time.Millisecond)
	if n := h.calls.Load(); n != 1 {
		t.Errorf("provider calls = %d, want 1", n)
	}
	if n := len(h.rec.find(display.KindTranslation)); n != 1 {
		t.Errorf("translations shown = %d, want 1", n)
	}
	if h.mgr.History().Len() != 1 {
		t.Errorf("history len = %d", h.mgr.History().Len())
	}
}

func TestManualCaptureFailure(t *testing.T) {
	store := config.NewStore("", testConfig(map[string]string{"gemini": "gemini-key-0001"}))
	h := newHarness(t, store, errors.New("no display"))

	id, err := h.mgr.SubmitManualTranslation(context.Background(), screen.Region{Width: 10, Height: 10})
	if err != nil || id == "" {
		t.Fatalf("submit = (%q, %v)", id, err)
	}
	msg := h.rec.wait(t, display.KindError)
	if msg.Text != dispatch.MsgCaptureFailed || msg.RequestID != id {
		t.Errorf("message = %+v", msg)
	}
}

func TestManualWithoutProvider(t *testing.T) {
	store := config.NewStore("", testConfig(nil))
	h := newHarness(t, store, nil)

	if _, err := h.mgr.SubmitManualTranslation(context.Background(), screen.Region{Width: 48, Height: 16}); err != nil {
		t.Fatal(err)
	}
	if msg := h.rec.wait(t, display.KindError); msg.Text != dispatch.MsgNoProvider {
		t.Errorf("message = %+v", msg)
	}
	if h.mgr.Status().Available {
		t.Error("status should report no provider")
	}
}

func TestSwitchProvider(t *testing.T) {
	store := config.NewStore("", testConfig(map[string]string{"gemini": "gemini-key-0001", "groq": "groq-key-00001"}))
	h := newHarness(t, store, nil)

	tests := []struct {
		name    string
		target  string
		wantErr error
	}{
		{"unknown", "nope", config.ErrUnknownProvider},
		{"no credentials", "cerebras", keyring.ErrNoCredentials},
		{"ok", "GROQ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.mgr.SwitchProvider(tt.target)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SwitchProvider(%q) = %v, want %v", tt.target, err, tt.wantErr)
			}
		})
	}

	st := h.mgr.Status()
	if st.Provider != "groq" || st.Chain != "groq" {
		t.Errorf("status = %+v", st)
	}
	if store.Snapshot().Provider != "groq" {
		t.Error("provider not saved")
	}
}

func TestSwitchToProviderWithRejectedKeys(t *testing.T) {
	cfg := testConfig(map[string]string{"gemini": "gemini-key-0001", "groq": "groq-key-00001"})
	cfg.FallbackProviders = []string{"groq"}
	store := config.NewStore("", cfg)
	rec := &recorder{}
	calls := &atomic.Int32{}
	mgr := New(store, Deps{
		Capturer: &fakeCapturer{},
		OCR:      &scriptedOCR{texts: []string{""}},
		Sink:     rec,
		NewClient: func(_ *config.Config, name, _ string) (provider.Client, error) {
			if name == "gemini" {
				return fakeClient{name: name, err: errors.New("invalid api key"), calls: calls}, nil
			}
			return fakeClient{name: name, text: "Bonjour", calls: calls}, nil
		},
	})
	t.Cleanup(func() { _ = mgr.Close() })

	// The only gemini key is rejected and removed; groq answers instead.
	if _, err := mgr.SubmitManualTranslation(context.Background(), screen.Region{Width: 48, Height: 16}); err != nil {
		t.Fatal(err)
	}
	if msg := rec.wait(t, display.KindTranslation); msg.Text != "Bonjour" {
		t.Fatalf("message = %+v", msg)
	}
	if err := mgr.SwitchProvider("groq"); err != nil {
		t.Fatal(err)
	}

	err := mgr.SwitchProvider("gemini")
	if !errors.Is(err, keyring.ErrNoCredentials) || !apperrors.IsCode(err, apperrors.ConfigMissing) {
		t.Fatalf("SwitchProvider(gemini) = %v, want ConfigMissing", err)
	}
	if st := mgr.Status(); st.Provider != "groq" || !st.Available {
		t.Errorf("status after failed switch = %+v", st)
	}

	// A new key makes the provider selectable again.
	if err := mgr.SetCredential("gemini", "gemini-key-0002"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.SwitchProvider("gemini"); err != nil {
		t.Errorf("switch after new key = %v", err)
	}
}

func TestSetCredentialActivatesProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	store := config.NewStore(path, testConfig(nil))
	h := newHarness(t, store, nil)

	if err := h.mgr.SetCredential("gemini", "  fresh-gemini-key  "); err != nil {
		t.Fatal(err)
	}
	st := h.mgr.Status()
	if !st.Available || st.Keys["gemini"].Current != keyring.Mask("fresh-gemini-key") {
		t.Errorf("status = %+v", st)
	}

	if _, err := h.mgr.SubmitManualTranslation(context.Background(), screen.Region{Width: 48, Height: 16}); err != nil {
		t.Fatal(err)
	}
	if msg := h.rec.wait(t, display.KindTranslation); msg.Text != "Bonjour" || !msg.Manual {
		t.Errorf("message = %+v", msg)
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if keys := loaded.Keys("gemini"); len(keys) == 0 || keys[0] != "fresh-gemini-key" {
		t.Errorf("persisted keys = %v", keys)
	}

	err = h.mgr.SetCredential("nope", "k")
	if !apperrors.IsCode(err, apperrors.ConfigInvalid) {
		t.Errorf("unknown provider err = %v", err)
	}
}

func TestStartStopMonitor(t *testing.T) {
	store := config.NewStore("", testConfig(map[string]string{"gemini": "gemini-key-0001"}))
	h := newHarness(t, store, nil)

	if _, err := h.mgr.StartMonitor(screen.Region{}, "ja"); !errors.Is(err, screen.ErrInvalidRegion) {
		t.Errorf("invalid region err = %v", err)
	}

	region := screen.Region{Width: 48, Height: 16}
	first, err := h.mgr.StartMonitor(region, "ja")
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.mgr.StartMonitor(region, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := h.mgr.StopMonitor(first); !errors.Is(err, ErrUnknownMonitor) {
		t.Errorf("first session should have been replaced, err = %v", err)
	}
	if st := h.mgr.Status(); len(st.Monitors) != 1 || st.Monitors[0].Handle != second {
		t.Errorf("monitors = %+v", st.Monitors)
	}

	if err := h.mgr.PauseMonitor("nope", true); !errors.Is(err, ErrUnknownMonitor) {
		t.Errorf("pause unknown err = %v", err)
	}
	if err := h.mgr.PauseMonitor(second, true); err != nil {
		t.Fatal(err)
	}
	if st := h.mgr.Status(); !st.Monitors[0].Paused {
		t.Error("status should report the session paused")
	}
	var notices []string
	for _, m := range h.rec.find(display.KindStatus) {
		notices = append(notices, m.Text)
	}
	if !slices.Contains(notices, MsgAutoPaused) {
		t.Errorf("status messages = %q", notices)
	}
	if err := h.mgr.PauseMonitor(second, false); err != nil || h.mgr.Status().Monitors[0].Paused {
		t.Errorf("resume err = %v", err)
	}
	if err := h.mgr.StopMonitor(second); err != nil {
		t.Fatal(err)
	}
	if st := h.mgr.Status(); len(st.Monitors) != 0 {
		t.Errorf("monitors after stop = %+v", st.Monitors)
	}
}
