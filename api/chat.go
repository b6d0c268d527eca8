package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/campusbot/campusbot/internal/chat"
	"github.com/campusbot/campusbot/internal/log"
)

// DefaultSessionID is used when a chat request does not name a session.
const DefaultSessionID = "default"

// ChatHandler handles the JSON chat endpoints.
//
// Endpoints:
//   - POST /api/chat  - answer a question
//   - POST /api/reset - clear a session's conversation history
type ChatHandler struct {
	answerer Answerer
	sessions SessionResetter
	speaker  Speaker
	logger   log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(answerer Answerer, sessions SessionResetter, speaker Speaker, logger log.Logger) *ChatHandler {
	return &ChatHandler{answerer: answerer, sessions: sessions, speaker: speaker, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("POST /api/reset", h.handleReset)
}

// ChatRequest is the POST /api/chat request body.
type ChatRequest struct {
	Message      string `json:"message"`
	SessionID    string `json:"session_id"`
	VoiceEnabled bool   `json:"voice_enabled"`
}

// ChatResponse is the POST /api/chat response body. AudioURL is set only
// when the request asked for voice and synthesis succeeded.
type ChatResponse struct {
	Response       string  `json:"response"`
	ProcessingTime float64 `json:"processingTime"`
	AudioURL       string  `json:"audio_url,omitempty"`
}

func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	start := time.Now()
	answer, err := h.answerer.Answer(r.Context(), sessionID, req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, "message is required", "")
			return
		}
		// The engine degrades provider failures to an apology answer, so
		// any other error here is unexpected.
		h.logger.Error("answering chat request", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "Sorry, there was an error processing your request.", "")
		return
	}
	elapsed := time.Since(start)

	h.logger.Info("chat request answered",
		"session_id", sessionID,
		"processing_time", elapsed,
	)

	resp := ChatResponse{
		Response:       answer,
		ProcessingTime: math.Round(elapsed.Seconds()*100) / 100,
	}

	// Voice is best-effort: a synthesis failure never fails the chat.
	if req.VoiceEnabled && h.speaker != nil {
		if url := h.speaker.SynthesizeBestEffort(r.Context(), answer); url != "" {
			resp.AudioURL = url
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ResetRequest is the POST /api/reset request body.
type ResetRequest struct {
	SessionID string `json:"session_id"`
}

// ResetResponse is the POST /api/reset response body.
type ResetResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *ChatHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	h.sessions.Reset(sessionID)
	h.logger.Info("session reset", "session_id", sessionID)

	writeJSON(w, http.StatusOK, ResetResponse{
		Status:  "success",
		Message: "Conversation reset successfully.",
	})
}
