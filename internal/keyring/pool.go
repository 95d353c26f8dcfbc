// Package keyring owns provider credentials: per-provider key pools with
// rotation, rate-limit cooldowns and permanent removal of rejected keys, plus
// the failover chain across providers.
package keyring

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Pool is one provider's ordered key list and cooldown map. All methods are
// safe for concurrent use by dispatcher workers.
type Pool struct {
	provider string
	cooldown time.Duration
	now      func() time.Time

	mu        sync.Mutex
	keys      []string
	index     int
	cooldowns map[string]time.Time
}

// NewPool creates a pool over keys, dropping blanks and duplicates.
func NewPool(provider string, keys []string, cooldown time.Duration) *Pool {
	p := &Pool{
		provider:  provider,
		cooldown:  cooldown,
		now:       time.Now,
		cooldowns: make(map[string]time.Time),
	}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" && !slices.Contains(p.keys, k) {
			p.keys = append(p.keys, k)
		}
	}
	return p
}

// WithClock replaces the time source (tests).
func (p *Pool) WithClock(now func() time.Time) *Pool {
	p.now = now
	return p
}

// Provider returns the provider name the pool belongs to.
func (p *Pool) Provider() string { return p.provider }

// Len returns the number of usable (not removed) keys.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// Current returns the active key, or "" when the pool is empty.
func (p *Pool) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return ""
	}
	return p.keys[p.index]
}

// Rotation returns the keys starting at the current index, wrapping around.
func (p *Pool) Rotation() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	order := make([]string, 0, len(p.keys))
	order = append(order, p.keys[p.index:]...)
	return append(order, p.keys[:p.index]...)
}

// Available reports whether key is in the pool and not cooling down. An
// expired cooldown is cleared.
func (p *Pool) Available(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !slices.Contains(p.keys, key) {
		return false
	}
	until, ok := p.cooldowns[key]
	if !ok {
		return true
	}
	if !p.now().Before(until) {
		delete(p.cooldowns, key)
		return true
	}
	return false
}

// Activate makes key the current credential.
func (p *Pool) Activate(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i := slices.Index(p.keys, key); i >= 0 {
		p.index = i
	}
}

// Advance moves the index past key.
func (p *Pool) Advance(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i := slices.Index(p.keys, key); i >= 0 {
		p.index = (i + 1) % len(p.keys)
	}
}

// Cooldown benches key for the pool's cooldown, or for d when longer.
func (p *Pool) Cooldown(key string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !slices.Contains(p.keys, key) {
		return
	}
	p.cooldowns[key] = p.now().Add(max(p.cooldown, d))
}

// CoolingDown returns how many keys are currently benched.
func (p *Pool) CoolingDown() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	n := 0
	for _, until := range p.cooldowns {
		if now.Before(until) {
			n++
		}
	}
	return n
}

// Remove drops key for good. It reports whether this call removed it, so
// concurrent callers that hit the same bad key act on it once, and whether
// the pool is now empty.
func (p *Pool) Remove(key string) (removed, empty bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := slices.Index(p.keys, key)
	if i < 0 {
		return false, len(p.keys) == 0
	}
	p.keys = slices.Delete(p.keys, i, i+1)
	delete(p.cooldowns, key)
	switch {
	case len(p.keys) == 0:
		p.index = 0
	case p.index > i:
		p.index--
	default:
		p.index %= len(p.keys)
	}
	return true, len(p.keys) == 0
}

// Promote puts key at the front of the pool, clears its cooldown and makes
// it current.
func (p *Pool) Promote(key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if i := slices.Index(p.keys, key); i >= 0 {
		p.keys = slices.Delete(p.keys, i, i+1)
	}
	p.keys = slices.Insert(p.keys, 0, key)
	delete(p.cooldowns, key)
	p.index = 0
}

// Mask renders key for logs as its first and last four characters.
func Mask(key string) string {
	switch {
	case key == "":
		return ""
	case len(key) <= 8:
		return "***"
	default:
		return key[:4] + "..." + key[len(key)-4:]
	}
}
