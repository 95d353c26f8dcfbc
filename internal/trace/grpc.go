package trace

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// UnaryClientInterceptor forwards trace IDs to the OCR sidecar.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		tc, ok := FromContext(ctx)
		if !ok {
			tc = New()
		}
		pairs := []string{TraceIDKey, tc.TraceID, SpanIDKey, tc.SpanID}
		if tc.RequestID != "" {
			pairs = append(pairs, RequestIDKey, tc.RequestID)
		}
		ctx = metadata.AppendToOutgoingContext(ctx, pairs...)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
