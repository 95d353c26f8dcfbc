package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestStorePersistsOnlyMutations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subtrans", "config.toml")
	t.Setenv("GEMINI_API_KEY", "env-only-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := NewStore(path, cfg)

	if err := s.SetCredential("groq", "gsk_new"); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}
	if err := s.SetProvider("groq"); err != nil {
		t.Fatalf("SetProvider: %v", err)
	}

	snap := s.Snapshot()
	if snap.Provider != "groq" {
		t.Errorf("Provider = %q, want groq", snap.Provider)
	}
	if got := snap.Keys("groq"); !slices.Equal(got, []string{"gsk_new"}) {
		t.Errorf("Keys = %v", got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read persisted file: %v", err)
	}
	if strings.Contains(string(data), "env-only-key") {
		t.Error("environment key leaked into the config file")
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	os.Unsetenv("GEMINI_API_KEY")
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Provider != "groq" || reloaded.Providers["groq"].APIKey != "gsk_new" {
		t.Errorf("reloaded provider=%q key=%q", reloaded.Provider, reloaded.Providers["groq"].APIKey)
	}
}

func TestStoreCredentialMovesPoolKeyToFront(t *testing.T) {
	cfg := Defaults()
	p := cfg.Providers["gemini"]
	p.APIKey = "k1"
	p.APIKeyPool = []string{"k2", "k3"}
	cfg.Providers["gemini"] = p

	s := NewStore("", cfg)
	if err := s.SetCredential("gemini", "k3"); err != nil {
		t.Fatal(err)
	}
	if got := s.Snapshot().Keys("gemini"); !slices.Equal(got, []string{"k3", "k2"}) {
		t.Errorf("Keys = %v, want [k3 k2]", got)
	}
}

func TestStoreRejectsUnknownProvider(t *testing.T) {
	s := NewStore("", Defaults())
	if err := s.SetProvider("babelfish"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("SetProvider err = %v, want ErrUnknownProvider", err)
	}
	if err := s.SetCredential("gemini", "  "); err == nil {
		t.Error("expected error for empty key")
	}
}
