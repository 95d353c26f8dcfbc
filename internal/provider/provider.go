// Package provider talks to vision-capable translation services. Every
// provider receives a JPEG of the subtitle region plus recent context lines
// and returns the translated text, or NoText when nothing is legible.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/GriffinCanCode/subtrans/internal/config"
)

// NoText is the sentinel a provider returns when the image holds no text.
const NoText = "__NO_TEXT__"

// Client translates one subtitle image.
type Client interface {
	Name() string
	TranslateImage(ctx context.Context, jpeg []byte, history []string) (string, error)
}

// Params is everything a client needs for one credential.
type Params struct {
	Name           string
	APIKey         string
	Model          string
	BaseURL        string
	TargetLanguage string
	Generation     config.Generation
	Timeout        time.Duration
}

// StatusError is a non-2xx response. The body is kept verbatim so failover
// can classify it.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request: http %d: %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
}

// Option customizes a client.
type Option func(*base)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(b *base) {
		if client != nil {
			b.http = client
		}
	}
}

// base carries what gemini and the chat-completions clients share.
type base struct {
	params Params
	http   *http.Client
}

func newBase(p Params, opts []Option) base {
	p.APIKey = strings.TrimSpace(p.APIKey)
	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	p.Model = strings.TrimSpace(p.Model)
	if p.Timeout <= 0 {
		p.Timeout = config.DefaultTimeoutSeconds * time.Second
	}
	b := base{params: p, http: &http.Client{Timeout: p.Timeout}}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) Name() string { return b.params.Name }

// normalize trims model output and maps empty replies to NoText.
func normalize(text string) string {
	text = strings.TrimSpace(text)
	if text == "" || strings.Contains(text, NoText) {
		return NoText
	}
	return text
}
