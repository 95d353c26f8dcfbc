// Package config loads translator settings from defaults, an optional TOML
// file and the environment, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full translator configuration. Every field is omitempty so a
// persisted file only carries what was explicitly set.
type Config struct {
	HTTPAddr          string                    `toml:"http_addr,omitempty"`
	OCRAddr           string                    `toml:"ocr_addr,omitempty"`
	OCRCommand        string                    `toml:"ocr_command,omitempty"`
	SourceLanguage    string                    `toml:"source_language,omitempty"`
	TargetLanguage    string                    `toml:"target_language,omitempty"`
	Provider          string                    `toml:"provider,omitempty"`
	FallbackProviders []string                  `toml:"fallback_providers,omitempty"`
	Providers         map[string]ProviderConfig `toml:"providers,omitempty"`
	Generation        Generation                `toml:"generation,omitempty"`
	Cache             CacheConfig               `toml:"cache,omitempty"`
	Dispatch          DispatchConfig            `toml:"dispatch,omitempty"`
	OCR               OCRConfig                 `toml:"ocr,omitempty"`
	Image             ImageConfig               `toml:"image,omitempty"`
}

// ProviderConfig holds one provider's credentials and endpoint.
type ProviderConfig struct {
	APIKey         string   `toml:"api_key,omitempty"`
	APIKeyPool     []string `toml:"api_key_pool,omitempty"`
	Model          string   `toml:"model,omitempty"`
	BaseURL        string   `toml:"base_url,omitempty"`
	TimeoutSeconds float64  `toml:"timeout_seconds,omitempty"`
}

// Generation holds sampling parameters sent to every provider.
type Generation struct {
	Temperature      float64 `toml:"temperature,omitempty"`
	MaxTokens        int     `toml:"max_tokens,omitempty"`
	TopP             float64 `toml:"top_p,omitempty"`
	FrequencyPenalty float64 `toml:"frequency_penalty,omitempty"`
	PresencePenalty  float64 `toml:"presence_penalty,omitempty"`
}

type CacheConfig struct {
	MaxImages      int     `toml:"max_images,omitempty"`
	MaxTexts       int     `toml:"max_texts,omitempty"`
	TextSimilarity float64 `toml:"text_similarity,omitempty"`
}

type DispatchConfig struct {
	Workers         int     `toml:"workers,omitempty"`
	QueueSize       int     `toml:"queue_size,omitempty"`
	MaxBacklog      int     `toml:"max_backlog,omitempty"`
	CooldownSeconds float64 `toml:"cooldown_seconds,omitempty"`
}

type OCRConfig struct {
	MinConfidence       float64 `toml:"min_confidence,omitempty"`
	MaxLines            int     `toml:"max_lines,omitempty"`
	IntervalSeconds     float64 `toml:"interval_seconds,omitempty"`
	SimilarityThreshold float64 `toml:"similarity_threshold,omitempty"`
	DuplicateRatio      float64 `toml:"duplicate_ratio,omitempty"`
	DebounceSeconds     float64 `toml:"debounce_seconds,omitempty"`
	StabilityFrames     int     `toml:"stability_frames,omitempty"`
	QuickAppearance     bool    `toml:"quick_appearance,omitempty"`
}

type ImageConfig struct {
	MaxWidth    int `toml:"max_width,omitempty"`
	JPEGQuality int `toml:"jpeg_quality,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	providers := make(map[string]ProviderConfig, len(ProviderDefaults))
	for name, p := range ProviderDefaults {
		p.TimeoutSeconds = DefaultTimeoutSeconds
		providers[name] = p
	}
	return &Config{
		HTTPAddr:       DefaultHTTPAddr,
		OCRAddr:        DefaultOCRAddr,
		OCRCommand:     DefaultOCRCommand,
		SourceLanguage: DefaultSourceLanguage,
		TargetLanguage: DefaultTargetLanguage,
		Provider:       DefaultProvider,
		Providers:      providers,
		Generation: Generation{
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
			TopP:        DefaultTopP,
		},
		Cache: CacheConfig{
			MaxImages:      DefaultMaxImages,
			MaxTexts:       DefaultMaxTexts,
			TextSimilarity: DefaultTextSimilarity,
		},
		Dispatch: DispatchConfig{
			Workers:         DefaultWorkers,
			QueueSize:       DefaultQueueSize,
			CooldownSeconds: DefaultCooldownSeconds,
		},
		OCR: OCRConfig{
			MinConfidence:       DefaultMinConfidence,
			MaxLines:            DefaultMaxLines,
			IntervalSeconds:     DefaultIntervalSeconds,
			SimilarityThreshold: DefaultSimilarityThreshold,
			DuplicateRatio:      DefaultDuplicateRatio,
			DebounceSeconds:     DefaultDebounceSeconds,
			StabilityFrames:     DefaultStabilityFrames,
		},
		Image: ImageConfig{MaxWidth: DefaultMaxImageWidth, JPEGQuality: DefaultJPEGQuality},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/subtrans/config.toml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "subtrans", "config.toml")
}

// Load builds the configuration from defaults, the file at path (if it
// exists) and the environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := readFile(path, cfg); err != nil {
			return nil, err
		}
	}
	fillProviderDefaults(cfg)
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// fillProviderDefaults restores endpoint defaults a partial [providers.x]
// table left empty.
func fillProviderDefaults(cfg *Config) {
	for name, p := range cfg.Providers {
		def := ProviderDefaults[name]
		if p.Model == "" {
			p.Model = def.Model
		}
		if p.BaseURL == "" {
			p.BaseURL = def.BaseURL
		}
		if p.TimeoutSeconds <= 0 {
			p.TimeoutSeconds = DefaultTimeoutSeconds
		}
		cfg.Providers[name] = p
	}
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if _, ok := c.Providers[c.Provider]; !ok {
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	for _, name := range c.FallbackProviders {
		if _, ok := c.Providers[name]; !ok {
			return fmt.Errorf("unknown fallback provider %q", name)
		}
	}
	if c.OCR.IntervalSeconds <= 0 {
		return fmt.Errorf("ocr interval must be positive, got %v", c.OCR.IntervalSeconds)
	}
	if c.Cache.MaxImages <= 0 || c.Cache.MaxTexts <= 0 {
		return fmt.Errorf("cache sizes must be positive")
	}
	return nil
}

// Keys returns the provider's primary key followed by its pool, trimmed and
// deduplicated in order.
func (c *Config) Keys(provider string) []string {
	p, ok := c.Providers[provider]
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	var keys []string
	for _, k := range append([]string{p.APIKey}, p.APIKeyPool...) {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// ProviderOrder returns the active provider followed by distinct fallbacks.
func (c *Config) ProviderOrder() []string {
	order := []string{c.Provider}
	for _, name := range c.FallbackProviders {
		if !slices.Contains(order, name) {
			order = append(order, name)
		}
	}
	return order
}

// Interval is the monitor sampling period.
func (c *Config) Interval() time.Duration { return seconds(c.OCR.IntervalSeconds) }

// Debounce is the minimum gap between monitor emissions.
func (c *Config) Debounce() time.Duration { return seconds(c.OCR.DebounceSeconds) }

// Cooldown is how long a rate-limited key sits out.
func (c *Config) Cooldown() time.Duration { return seconds(c.Dispatch.CooldownSeconds) }

// Timeout is the HTTP timeout for one provider call.
func (c *Config) Timeout(provider string) time.Duration {
	if t := c.Providers[provider].TimeoutSeconds; t > 0 {
		return seconds(t)
	}
	return DefaultTimeoutSeconds * time.Second
}

// StabilityFrames returns the configured frame count clamped to 2..4.
func (c *Config) StabilityFrames() int {
	return clamp(c.OCR.StabilityFrames, MinStabilityFrames, MaxStabilityFrames)
}

// Workers returns the dispatcher pool size clamped to 2..5.
func (c *Config) Workers() int {
	return clamp(c.Dispatch.Workers, MinWorkers, MaxWorkers)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.FallbackProviders = slices.Clone(c.FallbackProviders)
	out.Providers = make(map[string]ProviderConfig, len(c.Providers))
	for name, p := range c.Providers {
		p.APIKeyPool = slices.Clone(p.APIKeyPool)
		out.Providers[name] = p
	}
	return &out
}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

func clamp(v, lo, hi int) int { return max(lo, min(v, hi)) }
