package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/arktext/textsearch/pkg/logger"
)

type requestIDKey struct{}

// RequestID tags each request with an ID, propagating an incoming
// X-Request-ID or generating a fresh UUID, and echoes it in the
// response header. Downstream loggers pick it up via logger.FromContext.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = logger.WithRequestID(ctx, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the ID set by RequestID, or an empty string.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
