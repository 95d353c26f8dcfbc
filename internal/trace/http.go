package trace

import "net/http"

// Middleware starts a trace for each HTTP request, continuing the caller's
// trace when the headers carry one.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := New()
		if id := r.Header.Get(TraceIDKey); id != "" {
			tc.TraceID = id
			tc.ParentSpanID = r.Header.Get(SpanIDKey)
		}
		tc.RequestID = r.Header.Get(RequestIDKey)
		w.Header().Set(TraceIDKey, tc.TraceID)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), tc)))
	})
}
