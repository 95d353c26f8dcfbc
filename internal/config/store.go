package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"
)

// ErrUnknownProvider is returned when a mutation names a provider that is not configured.
var ErrUnknownProvider = errors.New("unknown provider")

// Store is the runtime-mutable configuration. Mutations apply in memory and
// are written back to the TOML file; only the changed fields are persisted
// so environment overrides never leak into the file.
type Store struct {
	path string
	mu   sync.RWMutex
	cfg  *Config
}

// NewStore wraps a loaded configuration. An empty path disables persistence.
func NewStore(path string, cfg *Config) *Store {
	return &Store{path: path, cfg: cfg.Clone()}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Snapshot returns a deep copy of the current configuration.
func (s *Store) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// SetProvider makes name the active provider.
func (s *Store) SetProvider(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	return s.update(name, func(c *Config) { c.Provider = name })
}

// SetCredential makes key the primary credential of provider. A key already
// in the pool moves to the front instead of being duplicated.
func (s *Store) SetCredential(provider, key string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("empty api key for %s", provider)
	}
	return s.update(provider, func(c *Config) {
		if c.Providers == nil {
			c.Providers = make(map[string]ProviderConfig)
		}
		p := c.Providers[provider]
		p.APIKey = key
		p.APIKeyPool = slices.DeleteFunc(slices.Clone(p.APIKeyPool), func(k string) bool {
			return strings.TrimSpace(k) == key
		})
		c.Providers[provider] = p
	})
}

func (s *Store) update(provider string, fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cfg.Providers[provider]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	if s.path != "" {
		if err := persist(s.path, fn); err != nil {
			return err
		}
	}
	fn(s.cfg)
	return nil
}

// persist applies fn to the on-disk document under an exclusive file lock and
// replaces the file atomically.
func persist(path string, fn func(*Config)) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock config: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	var doc Config
	if err := readFile(path, &doc); err != nil {
		return err
	}
	fn(&doc)

	data, err := toml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml")
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
