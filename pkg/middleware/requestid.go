package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/halcyonsec/aegis/pkg/observability"
)

// RequestIDHeader propagates the request ID across services.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request a UUID unless the caller supplied one,
// echoes it in the response, and stores it in the context so log lines
// can be correlated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)
		r = r.WithContext(observability.WithRequestID(r.Context(), requestID))
		next.ServeHTTP(w, r)
	})
}
