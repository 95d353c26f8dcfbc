package provider

import (
	"fmt"
	"slices"
	"strings"

	"github.com/GriffinCanCode/subtrans/internal/config"
)

// Names lists every provider the factory can build, sorted.
func Names() []string {
	names := make([]string, 0, len(config.ProviderDefaults))
	for name := range config.ProviderDefaults {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ParamsFor assembles the client parameters of provider for one key.
func ParamsFor(cfg *config.Config, name, key string) Params {
	p := cfg.Providers[name]
	return Params{
		Name:           name,
		APIKey:         key,
		Model:          p.Model,
		BaseURL:        p.BaseURL,
		TargetLanguage: cfg.TargetLanguage,
		Generation:     cfg.Generation,
		Timeout:        cfg.Timeout(name),
	}
}

// New builds the client for provider name using key.
func New(cfg *config.Config, name, key string, opts ...Option) (Client, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := cfg.Providers[name]; !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	p := ParamsFor(cfg, name, key)
	if p.BaseURL == "" {
		return nil, fmt.Errorf("provider %q has no base url", name)
	}
	if name == "gemini" {
		return NewGemini(p, opts...), nil
	}
	return NewChat(p, opts...), nil
}
