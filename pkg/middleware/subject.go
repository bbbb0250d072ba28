// Package middleware provides the HTTP middleware chain: caller identity,
// request IDs, and per-request metrics.
package middleware

import (
	"context"
	"net/http"
)

// SubjectHeader carries the authenticated caller's subject ID. The
// gateway in front of this service authenticates the caller and injects
// the header; this service only authorizes.
const SubjectHeader = "X-Subject-ID"

type subjectKeyType struct{}

var subjectKey subjectKeyType

// Subject extracts the caller's subject ID from the header and stores it
// in the request context for downstream handlers.
func Subject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(SubjectHeader); id != "" {
			r = r.WithContext(context.WithValue(r.Context(), subjectKey, id))
		}
		next.ServeHTTP(w, r)
	})
}

// SubjectFrom returns the caller's subject ID, empty when unauthenticated.
func SubjectFrom(ctx context.Context) string {
	id, _ := ctx.Value(subjectKey).(string)
	return id
}
