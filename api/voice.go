package api

import (
	"encoding/json"
	"net/http"

	"github.com/campusbot/campusbot/internal/log"
)

// VoiceHandler handles speech synthesis endpoints and serves cached clips.
//
// Endpoints:
//   - POST /api/voice       - synthesize arbitrary text
//   - GET  /api/check-voice - TTS connectivity check
//   - GET  /audio/{file}    - serve a cached audio clip
type VoiceHandler struct {
	speaker Speaker
	logger  log.Logger
}

// NewVoiceHandler creates a new voice handler.
func NewVoiceHandler(speaker Speaker, logger log.Logger) *VoiceHandler {
	return &VoiceHandler{speaker: speaker, logger: logger}
}

// RegisterRoutes registers voice routes on the given mux.
func (h *VoiceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/voice", h.handleSynthesize)
	mux.HandleFunc("GET /api/check-voice", h.handleCheck)
	mux.HandleFunc("GET /audio/{file}", h.handleAudio)
}

// VoiceRequest is the POST /api/voice request body.
type VoiceRequest struct {
	Text string `json:"text"`
}

// VoiceResponse is the POST /api/voice response body.
type VoiceResponse struct {
	AudioURL string `json:"audio_url"`
}

func (h *VoiceHandler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req VoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "No text provided", "")
		return
	}
	if h.speaker == nil || !h.speaker.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "voice synthesis is not configured", "")
		return
	}

	url, err := h.speaker.Synthesize(r.Context(), req.Text)
	if err != nil {
		h.logger.Error("synthesizing voice", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate audio", "")
		return
	}

	writeJSON(w, http.StatusOK, VoiceResponse{AudioURL: url})
}

// CheckVoiceResponse is the GET /api/check-voice response body.
type CheckVoiceResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	AudioURL string `json:"audio_url,omitempty"`
}

// handleCheck synthesizes a fixed test phrase to verify TTS connectivity.
func (h *VoiceHandler) handleCheck(w http.ResponseWriter, r *http.Request) {
	if h.speaker == nil || !h.speaker.Enabled() {
		writeJSON(w, http.StatusServiceUnavailable, CheckVoiceResponse{
			Status:  "error",
			Message: "Voice synthesis is not configured.",
		})
		return
	}

	url, err := h.speaker.Synthesize(r.Context(), "This is a test of the voice integration.")
	if err != nil {
		h.logger.Error("voice check failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, CheckVoiceResponse{
			Status:  "error",
			Message: "Failed to generate audio.",
		})
		return
	}

	writeJSON(w, http.StatusOK, CheckVoiceResponse{
		Status:   "success",
		Message:  "Voice integration is working correctly.",
		AudioURL: url,
	})
}

// handleAudio serves a cached clip. The Speaker validates the filename, so
// requests cannot escape the cache directory.
func (h *VoiceHandler) handleAudio(w http.ResponseWriter, r *http.Request) {
	if h.speaker == nil {
		http.NotFound(w, r)
		return
	}
	path, err := h.speaker.FilePath(r.PathValue("file"))
	if err != nil {
		h.logger.Debug("audio lookup failed", "file", r.PathValue("file"), "error", err)
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeFile(w, r, path)
}
