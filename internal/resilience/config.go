package resilience

import "time"

// Circuit breaker defaults
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 1

	// A provider whose every key failed this many requests in a row is skipped
	// until ProviderResetTimeout passes.
	ProviderThreshold    = 3
	ProviderResetTimeout = 60 * time.Second
)

// Config holds circuit breaker settings.
type Config struct {
	Threshold         int           // consecutive failures before opening
	ResetTimeout      time.Duration // wait before a half-open probe
	HalfOpenSuccesses int           // probe successes needed to close
}

// ProviderConfig returns the settings used in front of translation providers.
func ProviderConfig() Config {
	return Config{
		Threshold:         ProviderThreshold,
		ResetTimeout:      ProviderResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
