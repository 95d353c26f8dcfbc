// Package display is the consumer side of the dispatcher: it drops stale
// results, tracks how many requests are in flight and hands what survives to
// a Sink such as the overlay websocket hub.
package display

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/subtrans/internal/cache"
	apperrors "github.com/GriffinCanCode/subtrans/internal/errors"
	"github.com/GriffinCanCode/subtrans/internal/orchestrator/dispatch"
	"github.com/GriffinCanCode/subtrans/internal/orchestrator/history"
	"github.com/GriffinCanCode/subtrans/internal/provider"
)

// ContextLines is how many accepted subtitles are sent with auto requests.
const ContextLines = provider.HistoryLimit

// Kind tags a Message.
type Kind string

const (
	KindTranslation Kind = "translation"
	KindError       Kind = "error"
	KindStatus      Kind = "status"
)

// Message is what the overlay renders.
type Message struct {
	Kind      Kind      `json:"type"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Manual    bool      `json:"manual,omitempty"`
	Source    string    `json:"source,omitempty"`
	Hash      string    `json:"hash,omitempty"`
	Pending   int       `json:"pending"`
}

// Sink shows messages to the user.
type Sink interface {
	Show(Message)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Message)

func (f SinkFunc) Show(m Message) { f(m) }

// Options tunes the presenter.
type Options struct {
	MaxBacklog int // auto requests are refused while pending > MaxBacklog
}

// Presenter applies the display rules to dispatcher events.
type Presenter struct {
	sink    Sink
	history *history.Store
	opts    Options

	mu           sync.Mutex
	auto         bool
	pending      int
	lastAccepted time.Time
	lastText     string
	lastHash     *cache.Fingerprint
}

// New creates a presenter writing accepted texts to hist.
func New(sink Sink, hist *history.Store, opts Options) *Presenter {
	return &Presenter{sink: sink, history: hist, opts: opts}
}

// SetAuto records whether auto translation is on; it changes which
// no-text outcomes are shown.
func (p *Presenter) SetAuto(on bool) {
	p.mu.Lock()
	p.auto = on
	p.mu.Unlock()
}

// Pending returns the number of submitted requests not yet completed.
func (p *Presenter) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// LastText returns the last accepted translation.
func (p *Presenter) LastText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastText
}

// Reserve claims a pending slot before a request is submitted. Auto requests
// are refused while the backlog is exceeded; manual ones always go through.
func (p *Presenter) Reserve(manual bool) bool {
	p.mu.Lock()
	if !manual && p.pending > p.opts.MaxBacklog {
		p.mu.Unlock()
		return false
	}
	p.pending++
	n := p.pending
	p.mu.Unlock()
	p.sink.Show(Message{Kind: KindStatus, Text: "Translating...", Timestamp: time.Now(), Pending: n})
	return true
}

// Notify shows a status line, e.g. a pause toggle.
func (p *Presenter) Notify(text string) {
	p.sink.Show(Message{Kind: KindStatus, Text: text, Timestamp: time.Now(), Pending: p.Pending()})
}

// Release returns a slot whose request never reached the dispatcher.
func (p *Presenter) Release() {
	p.mu.Lock()
	p.pending = max(0, p.pending-1)
	p.mu.Unlock()
}

// Context returns the history and last hash to attach to an auto request.
func (p *Presenter) Context() ([]string, *cache.Fingerprint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history.Recent(ContextLines), p.lastHash
}

// Reset forgets the last accepted text and hash (new monitor session).
func (p *Presenter) Reset() {
	p.mu.Lock()
	p.lastText = ""
	p.lastHash = nil
	p.mu.Unlock()
}

// Run handles events until the channel is closed.
func (p *Presenter) Run(events <-chan dispatch.Event) {
	for ev := range events {
		p.Handle(ev)
	}
}

// Handle applies one dispatcher event. Every event frees a pending slot;
// an event is shown only when its timestamp is after the last accepted one.
func (p *Presenter) Handle(ev dispatch.Event) {
	msg, ok := p.apply(ev)
	if ok {
		p.sink.Show(msg)
	}
}

func (p *Presenter) apply(ev dispatch.Event) (Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = max(0, p.pending-1)
	msg := Message{Timestamp: ev.Timestamp, RequestID: ev.RequestID, Manual: ev.Manual, Pending: p.pending}

	if !ev.Timestamp.After(p.lastAccepted) {
		slog.Debug("stale translation dropped", "request_id", ev.RequestID,
			"timestamp", ev.Timestamp, "last_accepted", p.lastAccepted)
		return msg, false
	}

	if ev.Err != nil {
		if p.auto && !ev.Manual && isNoText(ev.Err) {
			return msg, false
		}
		msg.Kind, msg.Text = KindError, errorText(ev.Err)
		return msg, true
	}

	p.lastAccepted = ev.Timestamp
	text := strings.TrimSpace(ev.Text)
	if text == "" || text == provider.NoText {
		if ev.Hash != nil {
			p.lastHash = ev.Hash
		}
		if p.auto && !ev.Manual {
			return msg, false
		}
		msg.Kind, msg.Text = KindStatus, dispatch.MsgNoTextDetected
		return msg, true
	}
	if text == p.lastText {
		return msg, false
	}

	p.lastText = text
	p.lastHash = ev.Hash
	p.history.Add(ev.Timestamp, text, ev.Manual)
	msg.Kind, msg.Text, msg.Source = KindTranslation, text, ev.Source.String()
	if ev.Hash != nil {
		msg.Hash = ev.Hash.String()
	}
	return msg, true
}

func isNoText(err error) bool {
	return apperrors.IsCode(err, apperrors.NoTextDetected) ||
		strings.Contains(strings.ToLower(err.Error()), "no text detected")
}

// errorText renders err for the overlay. Capture and missing-provider
// messages are shown as is; configuration problems are set apart from
// transient provider failures.
func errorText(err error) string {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return "Translation failed: " + err.Error()
	}
	switch {
	case appErr.Code == apperrors.CaptureFailed, appErr.Message == dispatch.MsgNoProvider:
		return appErr.Message
	case apperrors.IsCode(err, apperrors.ConfigMissing):
		return "Configuration required: " + appErr.Message
	default:
		return "Translation failed: " + appErr.Message
	}
}
