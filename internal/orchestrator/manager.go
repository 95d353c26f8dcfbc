// Package orchestrator is the controller of the translator core: it owns the
// monitor sessions, the dispatcher, the presenter and the provider chain, and
// exposes the operations the overlay and the CLI drive.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/subtrans/internal/cache"
	"github.com/GriffinCanCode/subtrans/internal/config"
	"github.com/GriffinCanCode/subtrans/internal/display"
	apperrors "github.com/GriffinCanCode/subtrans/internal/errors"
	"github.com/GriffinCanCode/subtrans/internal/keyring"
	"github.com/GriffinCanCode/subtrans/internal/ocr"
	"github.com/GriffinCanCode/subtrans/internal/orchestrator/dispatch"
	"github.com/GriffinCanCode/subtrans/internal/orchestrator/history"
	"github.com/GriffinCanCode/subtrans/internal/orchestrator/monitor"
	"github.com/GriffinCanCode/subtrans/internal/provider"
	"github.com/GriffinCanCode/subtrans/internal/resilience"
	"github.com/GriffinCanCode/subtrans/internal/screen"
	"github.com/GriffinCanCode/subtrans/internal/trace"
)

// ErrUnknownMonitor is returned for a monitor handle that is not running.
var ErrUnknownMonitor = errors.New("unknown monitor handle")

// ClientFactory builds a provider client for one key.
type ClientFactory func(cfg *config.Config, name, key string) (provider.Client, error)

// Deps are the collaborators a Manager drives.
type Deps struct {
	Capturer screen.Capturer
	OCR      ocr.Extractor
	Sink     display.Sink
	// NewClient defaults to provider.New.
	NewClient ClientFactory
	// Breaker configures the per-provider circuit breakers.
	Breaker *resilience.Config
}

// Manager owns the monitor sessions, one key pool per provider, the failover
// chain, the dispatcher and the presenter that feeds the overlay.
type Manager struct {
	store     *config.Store
	capturer  screen.Capturer
	ocr       ocr.Extractor
	newClient ClientFactory
	breaker   resilience.Config

	dispatcher *dispatch.Dispatcher
	presenter  *display.Presenter
	history    *history.Store

	ctx     context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup

	mu       sync.Mutex
	keyrings map[string]*keyring.Manager
	chain    *keyring.Chain
	monitors map[string]*monitor.Monitor
	closed   bool
}

// New builds the controller and starts the dispatcher and presenter. The
// active provider may lack credentials; requests then fail with "Translation
// service not available" until SetCredential or SwitchProvider fixes it.
func New(store *config.Store, deps Deps) *Manager {
	cfg := store.Snapshot()
	if deps.NewClient == nil {
		deps.NewClient = func(cfg *config.Config, name, key string) (provider.Client, error) {
			return provider.New(cfg, name, key)
		}
	}
	if deps.Sink == nil {
		deps.Sink = display.SinkFunc(func(display.Message) {})
	}
	breaker := resilience.ProviderConfig()
	if deps.Breaker != nil {
		breaker = *deps.Breaker
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:     store,
		capturer:  deps.Capturer,
		ocr:       deps.OCR,
		newClient: deps.NewClient,
		breaker:   breaker,
		history:   history.NewStore(HistoryMaxEntries),
		ctx:       ctx,
		cancel:    cancel,
		keyrings:  make(map[string]*keyring.Manager),
		monitors:  make(map[string]*monitor.Monitor),
	}

	m.mu.Lock()
	client := m.rebuildLocked(cfg)
	m.mu.Unlock()

	m.dispatcher = dispatch.New(client,
		cache.NewImages(cfg.Cache.MaxImages),
		cache.NewTexts(cfg.Cache.MaxTexts, cfg.Cache.TextSimilarity),
		dispatch.OptionsFrom(cfg))
	m.presenter = display.New(deps.Sink, m.history, display.Options{MaxBacklog: cfg.Dispatch.MaxBacklog})

	m.running.Add(1)
	go func() {
		defer m.running.Done()
		m.presenter.Run(m.dispatcher.Events())
	}()
	return m
}

// keyringLocked returns the key manager for name, creating it on first use.
func (m *Manager) keyringLocked(cfg *config.Config, name string) *keyring.Manager {
	if km, ok := m.keyrings[name]; ok {
		return km
	}
	pool := keyring.NewPool(name, cfg.Keys(name), cfg.Cooldown())
	km := keyring.NewManager(pool, func(key string) (provider.Client, error) {
		// Endpoint settings are read at call time so a config change is
		// picked up by the next client built.
		return m.newClient(m.store.Snapshot(), name, key)
	})
	m.keyrings[name] = km
	return km
}

// rebuildLocked assembles the provider chain from cfg's provider order,
// skipping providers without credentials. It returns nil when none is usable.
func (m *Manager) rebuildLocked(cfg *config.Config) provider.Client {
	log := trace.Logger(m.ctx)
	var links []provider.Client
	for _, name := range cfg.ProviderOrder() {
		km := m.keyringLocked(cfg, name)
		if km.Pool().Len() == 0 {
			log.Warn("provider has no api key", "provider", name)
			continue
		}
		links = append(links, km)
	}
	if len(links) == 0 {
		m.chain = nil
		return nil
	}
	m.chain = keyring.NewChain(m.breaker, links...)
	log.Info("translation chain ready", "chain", m.chain.Name())
	return m.chain
}

// StartMonitor begins watching region for settled subtitles and returns the
// session handle. Only one session runs at a time: an earlier one is stopped.
func (m *Manager) StartMonitor(region screen.Region, sourceLang string) (string, error) {
	if !region.Valid() {
		return "", apperrors.Wrap(screen.ErrInvalidRegion, apperrors.InvalidArgument, "start monitor")
	}
	if m.capturer == nil || m.ocr == nil {
		return "", apperrors.New(apperrors.Unavailable, "screen capture or ocr not configured")
	}
	cfg := m.store.Snapshot()
	if strings.TrimSpace(sourceLang) == "" {
		sourceLang = cfg.SourceLanguage
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", dispatch.ErrStopped
	}
	for handle, mon := range m.monitors {
		mon.Stop()
		delete(m.monitors, handle)
	}
	m.dispatcher.ResetTextCache()
	m.presenter.Reset()
	m.presenter.SetAuto(true)

	handle := uuid.NewString()
	mon := monitor.New(region, sourceLang, m.capturer, m.ocr, monitor.OptionsFrom(cfg), m.onSettled(region))
	m.monitors[handle] = mon
	m.running.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.running.Done()
		mon.Run(trace.WithRequest(m.ctx, handle))
	}()
	trace.Logger(m.ctx).Info("monitor session started", "handle", handle, "region", region.String(), "lang", sourceLang)
	return handle, nil
}

// onSettled turns a monitor emission into an auto request carrying the
// recent subtitles and the last accepted frame hash.
func (m *Manager) onSettled(region screen.Region) monitor.Sink {
	return func(ev monitor.Event) {
		if !m.presenter.Reserve(false) {
			trace.Logger(m.ctx).Debug("auto request skipped, backlog full", "pending", m.presenter.Pending())
			return
		}
		hist, last := m.presenter.Context()
		sample := ev.Sample
		req := &dispatch.Request{
			Region:   region,
			Frame:    ev.Frame,
			OCR:      &sample,
			History:  hist,
			LastHash: last,
		}
		if err := m.dispatcher.Submit(req); err != nil {
			m.presenter.Release()
			trace.Logger(m.ctx).Warn("auto request dropped", "error", err)
		}
	}
}

// StopMonitor ends the session. No emission follows once it returns, apart
// from requests already submitted.
func (m *Manager) StopMonitor(handle string) error {
	m.mu.Lock()
	mon, ok := m.monitors[handle]
	delete(m.monitors, handle)
	idle := len(m.monitors) == 0
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMonitor, handle)
	}
	mon.Stop()
	if idle {
		m.presenter.SetAuto(false)
	}
	trace.Logger(m.ctx).Info("monitor session stopped", "handle", handle)
	return nil
}

// PauseMonitor suspends or resumes sampling for handle. A paused session
// keeps its stability window and last emitted text.
func (m *Manager) PauseMonitor(handle string, paused bool) error {
	m.mu.Lock()
	mon, ok := m.monitors[handle]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMonitor, handle)
	}
	if mon.Paused() == paused {
		return nil
	}
	mon.Pause(paused)
	if paused {
		m.presenter.Notify(MsgAutoPaused)
	} else {
		m.presenter.Notify(MsgAutoResumed)
	}
	trace.Logger(m.ctx).Info("monitor pause toggled", "handle", handle, "paused", paused)
	return nil
}

// SubmitManualTranslation captures region now and queues a manual request.
// A failed capture still produces a request so the overlay receives
// "Screenshot capture failed" through the normal event path.
func (m *Manager) SubmitManualTranslation(ctx context.Context, region screen.Region) (string, error) {
	var frame *screen.Frame
	if m.capturer != nil {
		f, err := m.capturer.Capture(ctx, region)
		if err != nil {
			trace.Logger(ctx).Warn("manual capture failed", "region", region.String(), "error", err)
		}
		frame = f
	}

	m.presenter.Reserve(true)
	req := &dispatch.Request{Region: region, Frame: frame, Manual: true}
	if id, ok := trace.FromContext(ctx); ok && id.RequestID != "" {
		req.ID = id.RequestID
	}
	if err := m.dispatcher.Submit(req); err != nil {
		m.presenter.Release()
		return "", err
	}
	return req.ID, nil
}

// SwitchProvider makes name the active provider. It fails when the name is
// unknown or the provider cannot be built, for example without a key.
func (m *Manager) SwitchProvider(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	cfg := m.store.Snapshot()
	if _, ok := cfg.Providers[name]; !ok {
		return apperrors.Wrapf(config.ErrUnknownProvider, apperrors.ConfigInvalid, "provider %q", name)
	}
	keys := cfg.Keys(name)
	if len(keys) == 0 {
		return apperrors.Wrapf(keyring.ErrNoCredentials, apperrors.ConfigMissing, "%s: no api key configured", name)
	}
	if _, err := m.newClient(cfg, name, keys[0]); err != nil {
		return apperrors.Wrapf(err, apperrors.ConfigInvalid, "initialise %s", name)
	}
	// Keys the provider rejected stay removed until SetCredential adds a new one.
	m.mu.Lock()
	usable := m.keyringLocked(cfg, name).Pool().Len()
	m.mu.Unlock()
	if usable == 0 {
		return apperrors.Wrapf(keyring.ErrNoCredentials, apperrors.ConfigMissing, "%s: all api keys were rejected", name)
	}
	if err := m.store.SetProvider(name); err != nil {
		return apperrors.Wrap(err, apperrors.ConfigInvalid, "save provider")
	}

	m.mu.Lock()
	client := m.rebuildLocked(m.store.Snapshot())
	m.mu.Unlock()
	m.dispatcher.SetProvider(client)
	trace.Logger(m.ctx).Info("provider switched", "provider", name)
	return nil
}

// SetCredential persists key as provider's primary key and rotates the live
// client onto it. A provider that had no usable key joins the chain.
func (m *Manager) SetCredential(providerName, key string) error {
	providerName = strings.ToLower(strings.TrimSpace(providerName))
	key = strings.TrimSpace(key)
	if err := m.store.SetCredential(providerName, key); err != nil {
		if errors.Is(err, config.ErrUnknownProvider) {
			return apperrors.Wrap(err, apperrors.ConfigInvalid, "set credential")
		}
		return apperrors.Wrap(err, apperrors.InvalidArgument, "set credential")
	}

	m.mu.Lock()
	cfg := m.store.Snapshot()
	km := m.keyringLocked(cfg, providerName)
	wasEmpty := km.Pool().Len() == 0
	km.SetCredential(key)
	var client provider.Client
	rebuild := wasEmpty && slices.Contains(cfg.ProviderOrder(), providerName)
	if rebuild {
		client = m.rebuildLocked(cfg)
	} else if m.chain != nil {
		m.chain.Reset(providerName)
	}
	m.mu.Unlock()

	if rebuild {
		m.dispatcher.SetProvider(client)
	}
	return nil
}

// History returns the accepted-subtitle store.
func (m *Manager) History() *history.Store { return m.history }

// Close stops every monitor, drains the dispatcher and waits for the
// presenter to show the last results.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	mons := make([]*monitor.Monitor, 0, len(m.monitors))
	for handle, mon := range m.monitors {
		mons = append(mons, mon)
		delete(m.monitors, handle)
	}
	m.mu.Unlock()

	for _, mon := range mons {
		mon.Stop()
		select {
		case <-mon.Done():
		case <-time.After(MonitorStopTimeout):
			trace.Logger(m.ctx).Warn("monitor did not stop in time", "region", mon.Region().String())
		}
	}
	m.cancel()
	m.dispatcher.Stop()
	m.running.Wait()
	if m.capturer != nil {
		return m.capturer.Close()
	}
	return nil
}
