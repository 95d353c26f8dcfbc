package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestNewContextSizes(t *testing.T) {
	tc := New()
	if len(tc.TraceID) != 32 {
		t.Errorf("trace ID should be 32 chars, got %d", len(tc.TraceID))
	}
	if len(tc.SpanID) != 16 {
		t.Errorf("span ID should be 16 chars, got %d", len(tc.SpanID))
	}
}

func TestNewChildKeepsRequest(t *testing.T) {
	parent := New()
	parent.RequestID = "req-1"
	child := NewChild(parent)

	if child.TraceID != parent.TraceID {
		t.Error("child should inherit trace ID")
	}
	if child.ParentSpanID != parent.SpanID {
		t.Error("child's parent should be parent's span ID")
	}
	if child.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", child.RequestID)
	}
	if NewChild(Context{}).TraceID == "" {
		t.Error("child of empty context should start a new trace")
	}
}

func TestWithRequest(t *testing.T) {
	ctx := WithRequest(context.Background(), "abc")
	tc, ok := FromContext(ctx)
	if !ok || tc.RequestID != "abc" || tc.TraceID == "" {
		t.Errorf("FromContext = %+v, %v", tc, ok)
	}

	ctx, span := StartSpan(ctx, "dispatch_job")
	span.SetAttr("manual", true)
	defer span.End()
	if span.Ctx.RequestID != "abc" {
		t.Errorf("span RequestID = %q", span.Ctx.RequestID)
	}
	if got, _ := FromContext(ctx); got.SpanID != span.Ctx.SpanID {
		t.Error("StartSpan should install the span context")
	}
}

func TestMiddlewareContinuesTrace(t *testing.T) {
	var got Context
	h := Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/status", http.NoBody)
	req.Header.Set(TraceIDKey, "0123456789abcdef0123456789abcdef")
	req.Header.Set(SpanIDKey, "0123456789abcdef")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got.TraceID != "0123456789abcdef0123456789abcdef" {
		t.Errorf("TraceID = %q", got.TraceID)
	}
	if got.ParentSpanID != "0123456789abcdef" {
		t.Errorf("ParentSpanID = %q", got.ParentSpanID)
	}
	if rec.Header().Get(TraceIDKey) != got.TraceID {
		t.Error("response should echo the trace ID")
	}
}

func TestUnaryClientInterceptor(t *testing.T) {
	ctx := WithRequest(context.Background(), "req-9")
	var md metadata.MD
	invoker := func(ctx context.Context, _ string, _, _ any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
		md, _ = metadata.FromOutgoingContext(ctx)
		return nil
	}
	if err := UnaryClientInterceptor()(ctx, "/m", nil, nil, nil, invoker); err != nil {
		t.Fatal(err)
	}
	if v := md.Get(RequestIDKey); len(v) != 1 || v[0] != "req-9" {
		t.Errorf("request id metadata = %v", v)
	}
	if v := md.Get(TraceIDKey); len(v) != 1 || len(v[0]) != 32 {
		t.Errorf("trace id metadata = %v", v)
	}
}
