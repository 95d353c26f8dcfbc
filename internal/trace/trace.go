// Package trace correlates log lines across one pipeline pass: a monitor
// session, a translation request, or an OCR sidecar call. IDs follow the
// W3C trace-context sizes so they can be forwarded to the sidecar as-is.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"
)

// Metadata keys for gRPC/HTTP propagation.
const (
	TraceIDKey   = "x-trace-id"
	SpanIDKey    = "x-span-id"
	RequestIDKey = "x-request-id"
)

type ctxKey struct{}

// Context holds trace identifiers for a single span.
type Context struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	RequestID    string
}

// New creates a trace context with fresh IDs.
func New() Context {
	return Context{TraceID: randomHex(16), SpanID: randomHex(8)}
}

// NewChild creates a child context from parent.
func NewChild(parent Context) Context {
	if parent.TraceID == "" {
		return New()
	}
	return Context{
		TraceID:      parent.TraceID,
		SpanID:       randomHex(8),
		ParentSpanID: parent.SpanID,
		RequestID:    parent.RequestID,
	}
}

// FromContext extracts the trace context.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}

// WithContext injects tc into ctx.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// WithRequest tags ctx with a translation request ID, creating a trace if
// none exists yet.
func WithRequest(ctx context.Context, requestID string) context.Context {
	tc, ok := FromContext(ctx)
	if !ok {
		tc = New()
	}
	tc.RequestID = requestID
	return WithContext(ctx, tc)
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (c Context) logArgs() []any {
	args := []any{"trace_id", c.TraceID, "span_id", c.SpanID}
	if c.ParentSpanID != "" {
		args = append(args, "parent_span_id", c.ParentSpanID)
	}
	if c.RequestID != "" {
		args = append(args, "request_id", c.RequestID)
	}
	return args
}

// Span represents a timed operation.
type Span struct {
	Name  string
	Ctx   Context
	start time.Time
	attrs []slog.Attr
	ended bool
}

// StartSpan begins a child span of whatever trace ctx carries.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent, _ := FromContext(ctx)
	tc := NewChild(parent)
	return WithContext(ctx, tc), &Span{Name: name, Ctx: tc, start: time.Now()}
}

// SetAttr records a span attribute.
func (s *Span) SetAttr(key string, val any) {
	s.attrs = append(s.attrs, slog.Any(key, val))
}

// End logs the span at debug level. Calling End twice is a no-op.
func (s *Span) End() {
	if s.ended {
		return
	}
	s.ended = true
	slog.Default().LogAttrs(context.Background(), slog.LevelDebug, "span", slog.Any("span", s))
}

// Duration returns the time since the span started.
func (s *Span) Duration() time.Duration { return time.Since(s.start) }

// LogValue implements slog.LogValuer.
func (s *Span) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("name", s.Name),
		slog.String("trace_id", s.Ctx.TraceID),
		slog.String("span_id", s.Ctx.SpanID),
		slog.Duration("duration", s.Duration()),
	}
	if s.Ctx.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", s.Ctx.RequestID))
	}
	return slog.GroupValue(append(attrs, s.attrs...)...)
}

// Logger returns the default logger enriched with ctx's trace IDs.
func Logger(ctx context.Context) *slog.Logger {
	tc, ok := FromContext(ctx)
	if !ok {
		return slog.Default()
	}
	return slog.Default().With(tc.logArgs()...)
}
