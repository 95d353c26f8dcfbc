package keyring

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/GriffinCanCode/subtrans/internal/errors"
	"github.com/GriffinCanCode/subtrans/internal/provider"
	"github.com/GriffinCanCode/subtrans/internal/resilience"
	"github.com/GriffinCanCode/subtrans/internal/trace"
)

type link struct {
	client  provider.Client
	breaker *resilience.Breaker
}

// Chain tries providers in order, each behind its own circuit breaker, so a
// provider that keeps failing is skipped until its reset timeout passes.
type Chain struct {
	links []link
}

// NewChain creates a chain; the first client is the active provider.
func NewChain(cfg resilience.Config, clients ...provider.Client) *Chain {
	c := &Chain{links: make([]link, 0, len(clients))}
	for _, client := range clients {
		c.links = append(c.links, link{client: client, breaker: resilience.New(client.Name(), cfg)})
	}
	return c
}

// Name joins the provider names in failover order.
func (c *Chain) Name() string {
	names := make([]string, len(c.links))
	for i, l := range c.links {
		names[i] = l.client.Name()
	}
	return strings.Join(names, ">")
}

// Breakers exposes each provider's breaker state for status reporting.
func (c *Chain) Breakers() map[string]resilience.State {
	out := make(map[string]resilience.State, len(c.links))
	for _, l := range c.links {
		out[l.client.Name()] = l.breaker.State()
	}
	return out
}

// Reset closes the named provider's breaker, e.g. after it got a new key.
// It reports whether the provider is part of the chain.
func (c *Chain) Reset(name string) bool {
	for _, l := range c.links {
		if l.client.Name() == name {
			l.breaker.Reset()
			return true
		}
	}
	return false
}

// TranslateImage implements provider.Client.
func (c *Chain) TranslateImage(ctx context.Context, jpeg []byte, history []string) (string, error) {
	if len(c.links) == 0 {
		return "", apperrors.New(apperrors.ConfigMissing, "no translation provider configured")
	}
	// With no alternative provider the breaker would only add downtime on top
	// of the key cooldowns.
	guarded := len(c.links) > 1
	var lastErr error
	for i, l := range c.links {
		if guarded && l.breaker.Allow() != nil {
			lastErr = apperrors.Wrap(resilience.ErrOpen, apperrors.Unavailable, l.client.Name()+": circuit open")
			continue
		}
		text, err := l.client.TranslateImage(ctx, jpeg, history)
		if err == nil {
			l.breaker.Success()
			return text, nil
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return "", err
		}
		// Rate-limited keys recover on their own cooldown, not the breaker's.
		if guarded && !errors.Is(err, ErrCoolingDown) {
			l.breaker.Failure()
		}
		lastErr = err
		if i+1 < len(c.links) {
			trace.Logger(ctx).Warn("provider failed, falling back",
				"provider", l.client.Name(), "next", c.links[i+1].client.Name(), "error", err)
		}
	}
	if len(c.links) == 1 {
		return "", lastErr
	}
	return "", apperrors.Wrap(lastErr, apperrors.ProvidersUnavailable, "all translation providers failed")
}
