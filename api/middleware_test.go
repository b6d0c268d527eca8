package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestLoggingMiddlewareAssignsRequestID(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	got := rec.Header().Get(requestIDHeader)
	if got == "" {
		t.Fatal("no X-Request-ID header on response")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("X-Request-ID %q is not a UUID: %v", got, err)
	}
}

func TestLoggingMiddlewareKeepsValidRequestID(t *testing.T) {
	s, _ := newTestServer(t)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, id)

	rec := do(s, req)
	if got := rec.Header().Get(requestIDHeader); got != id {
		t.Fatalf("X-Request-ID = %q, want the supplied %q", got, id)
	}
}

func TestLoggingMiddlewareReplacesGarbageRequestID(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "not-a-uuid\r\ninjected: header")

	rec := do(s, req)
	got := rec.Header().Get(requestIDHeader)
	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("X-Request-ID %q is not a UUID: %v", got, err)
	}
}
