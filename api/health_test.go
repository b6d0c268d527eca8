package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthAlwaysOK(t *testing.T) {
	s, deps := newTestServer(t)
	deps.index.ready = false

	rec := do(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestReadyWhenIndexLoaded(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())
}

func TestNotReadyWhenIndexMissing(t *testing.T) {
	s, deps := newTestServer(t)
	deps.index.ready = false

	rec := do(s, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNotReadyWhenIndexEmpty(t *testing.T) {
	s, deps := newTestServer(t)
	deps.index.count = 0

	rec := do(s, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
