package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"fleet-monitor-backend/internal/eventlog"
)

const requestIDHeader = "X-Request-Id"

// requestID tags every request with an id, reusing a well-formed incoming
// X-Request-Id, and echoes it in the response header.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := eventlog.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFrom returns the id assigned by the middleware, or "".
func RequestIDFrom(ctx context.Context) string {
	return eventlog.RequestID(ctx)
}
