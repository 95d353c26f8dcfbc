package keyring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/GriffinCanCode/subtrans/internal/errors"
	"github.com/GriffinCanCode/subtrans/internal/provider"
	"github.com/GriffinCanCode/subtrans/internal/trace"
)

var (
	// ErrAllKeysExhausted means every key was removed, cooling down or failed.
	ErrAllKeysExhausted = errors.New("all keys exhausted")
	// ErrNoCredentials means the pool is empty; nothing can be retried.
	ErrNoCredentials = errors.New("no credentials configured")
	// ErrCoolingDown means no key was attempted because all are cooling down.
	ErrCoolingDown = errors.New("all keys cooling down")
)

// Factory builds a provider client bound to one key.
type Factory func(key string) (provider.Client, error)

// Manager fails over across one provider's keys. It implements
// provider.Client so it can sit in a Chain.
type Manager struct {
	pool    *Pool
	factory Factory

	mu      sync.Mutex
	clients map[string]provider.Client
}

// NewManager creates a manager over pool.
func NewManager(pool *Pool, factory Factory) *Manager {
	return &Manager{pool: pool, factory: factory, clients: make(map[string]provider.Client)}
}

// Name returns the provider name.
func (m *Manager) Name() string { return m.pool.Provider() }

// Pool exposes the key pool for status reporting.
func (m *Manager) Pool() *Pool { return m.pool }

// SetCredential makes key the live credential.
func (m *Manager) SetCredential(key string) {
	m.pool.Promote(key)
	trace.Logger(context.Background()).Info("api key rotated",
		"provider", m.Name(), "key", Mask(m.pool.Current()))
}

// TranslateImage implements provider.Client.
func (m *Manager) TranslateImage(ctx context.Context, jpeg []byte, history []string) (string, error) {
	return m.TranslateWithFailover(ctx, jpeg, history)
}

// TranslateWithFailover tries each available key once, starting at the
// current one. Rejected keys are removed, rate-limited keys cool down and
// any other failure moves on to the next key.
func (m *Manager) TranslateWithFailover(ctx context.Context, jpeg []byte, history []string) (string, error) {
	log := trace.Logger(ctx).With("provider", m.Name())
	order := m.pool.Rotation()
	if len(order) == 0 {
		return "", apperrors.Wrap(ErrNoCredentials, apperrors.ConfigMissing, m.Name()+": no api key configured")
	}

	var (
		lastErr   error
		lastClass Class
	)
	for _, key := range order {
		if !m.pool.Available(key) {
			continue
		}
		m.pool.Activate(key)

		client, err := m.client(key)
		if err != nil {
			lastErr, lastClass = err, Transient
			m.pool.Advance(key)
			continue
		}
		text, err := client.TranslateImage(ctx, jpeg, history)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", apperrors.Wrap(ctx.Err(), apperrors.Cancelled, m.Name()+": translation cancelled")
		}

		lastErr, lastClass = err, Classify(err)
		switch lastClass {
		case AuthFailed:
			removed, empty := m.pool.Remove(key)
			m.forget(key)
			if removed {
				log.Warn("removing api key from rotation", "key", Mask(key), "error", err)
			}
			if empty {
				return "", apperrors.Wrap(fmt.Errorf("%w: %w", ErrNoCredentials, err),
					apperrors.ConfigMissing, m.Name()+": all api keys are invalid")
			}
		case RateLimited:
			m.pool.Cooldown(key, retryAfterOf(err))
			m.pool.Advance(key)
			log.Warn("api key rate limited", "key", Mask(key), "error", err)
		default:
			m.pool.Advance(key)
			log.Warn("provider call failed", "key", Mask(key), "error", err)
		}
	}

	if lastErr == nil {
		return "", apperrors.Wrap(fmt.Errorf("%w: %w", ErrAllKeysExhausted, ErrCoolingDown),
			apperrors.KeysExhausted, m.Name()+": all api keys are cooling down; retry later")
	}
	cause := apperrors.Wrap(lastErr, lastClass.code(), m.Name()+": provider call failed")
	return "", apperrors.Wrap(fmt.Errorf("%w: %w", ErrAllKeysExhausted, cause),
		apperrors.KeysExhausted, m.Name()+": no api key succeeded")
}

func (m *Manager) client(key string) (provider.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.clients[key]; ok {
		return c, nil
	}
	c, err := m.factory(key)
	if err != nil {
		return nil, err
	}
	m.clients[key] = c
	return c, nil
}

func (m *Manager) forget(key string) {
	m.mu.Lock()
	delete(m.clients, key)
	m.mu.Unlock()
}

func retryAfterOf(err error) (d time.Duration) {
	var se *provider.StatusError
	if errors.As(err, &se) {
		d = se.RetryAfter
	}
	return d
}
