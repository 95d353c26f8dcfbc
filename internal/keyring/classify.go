package keyring

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/GriffinCanCode/subtrans/internal/errors"
	"github.com/GriffinCanCode/subtrans/internal/provider"
)

// Class is how a provider failure affects the key that produced it.
type Class int

const (
	Transient   Class = iota // try the next key
	RateLimited              // cool the key down
	AuthFailed               // drop the key for good
)

func (c Class) String() string {
	switch c {
	case RateLimited:
		return "rate_limited"
	case AuthFailed:
		return "auth_failed"
	default:
		return "transient"
	}
}

var ratePhrases = []string{
	"rate limit", "rate_limit", "ratelimit", "too many requests",
	"quota", "429", "resource_exhausted", "slow down",
}

var authPhrases = []string{
	"permission", "unauthorized", "forbidden", "invalid api key", "invalid_api_key",
	"api key not valid", "invalid", "api key", "authentication", "401", "403",
}

// Classify decides how err should affect the key. Status codes win over
// message phrases; rate phrases are matched before auth phrases so "quota
// exceeded for api key" cools the key down instead of dropping it.
func Classify(err error) Class {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	switch apperrors.CodeOf(err) {
	case apperrors.ProviderRateLimited:
		return RateLimited
	case apperrors.ProviderAuthFailed:
		return AuthFailed
	}
	var se *provider.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusTooManyRequests:
			return RateLimited
		case se.StatusCode == http.StatusUnauthorized, se.StatusCode == http.StatusForbidden:
			return AuthFailed
		case se.StatusCode >= 500:
			return Transient
		}
	}
	msg := strings.ToLower(err.Error())
	if containsAny(msg, ratePhrases) {
		return RateLimited
	}
	if containsAny(msg, authPhrases) {
		return AuthFailed
	}
	return Transient
}

// code maps a class to the AppError code that reports it.
func (c Class) code() apperrors.Code {
	switch c {
	case RateLimited:
		return apperrors.ProviderRateLimited
	case AuthFailed:
		return apperrors.ProviderAuthFailed
	default:
		return apperrors.ProviderFailed
	}
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
