package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/halcyonsec/aegis/pkg/observability"
)

func TestSubjectMiddleware(t *testing.T) {
	var got string
	handler := Subject(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = SubjectFrom(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(SubjectHeader, "alice")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != "alice" {
		t.Errorf("Expected subject alice, got %q", got)
	}

	got = "unset"
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if got != "" {
		t.Errorf("Expected empty subject without header, got %q", got)
	}
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	var fromCtx string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = observability.RequestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	echoed := rec.Header().Get(RequestIDHeader)
	if echoed == "" {
		t.Fatal("Expected a generated request ID in the response")
	}
	if fromCtx != echoed {
		t.Errorf("Context ID %q must match echoed ID %q", fromCtx, echoed)
	}
}

func TestRequestIDPreservesCallerValue(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "caller-supplied-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "caller-supplied-id" {
		t.Errorf("Caller-supplied request ID must be preserved, got %q", got)
	}
}
