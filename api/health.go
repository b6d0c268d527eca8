package api

import (
	"net/http"

	"github.com/campusbot/campusbot/internal/log"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	index  IndexStatus
	logger log.Logger
}

// NewHealthHandler creates a new health handler.
// index is the retrieval index used for readiness checks.
func NewHealthHandler(index IndexStatus, logger log.Logger) *HealthHandler {
	return &HealthHandler{index: index, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness is a liveness probe endpoint.
// Returns 200 OK if the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness is a readiness probe endpoint.
// Returns 200 OK once the retrieval index is loaded and non-empty; until
// then answers would be generated without any knowledge base context.
func (h *HealthHandler) readiness(w http.ResponseWriter, _ *http.Request) {
	if h.index == nil || !h.index.Ready() {
		http.Error(w, "index not loaded", http.StatusServiceUnavailable)
		return
	}
	if h.index.Count() == 0 {
		h.logger.Warn("readiness check failed: index is empty")
		http.Error(w, "index is empty", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
