// Package api exposes the chatbot over HTTP.
//
//	┌─────────────────────────────────────────────────────────┐
//	│                      API Endpoints                      │
//	├─────────────────────────────────────────────────────────┤
//	│                                                         │
//	│  Chat (JSON):                                           │
//	│  POST /api/chat          →  answer a question           │
//	│  POST /api/reset         →  clear a session's history   │
//	│                                                         │
//	│  Voice (JSON + static):                                 │
//	│  POST /api/voice         →  synthesize arbitrary text   │
//	│  GET  /api/check-voice   →  TTS connectivity check      │
//	│  GET  /audio/{file}      →  serve cached audio clips    │
//	│                                                         │
//	│  Twilio webhooks (form → TwiML):                        │
//	│  POST /api/sms           →  inbound SMS                 │
//	│  POST /api/voice/welcome →  inbound call greeting       │
//	│  POST /api/voice/process →  caller speech turn          │
//	│                                                         │
//	│  Probes:                                                │
//	│  GET  /health            →  liveness                    │
//	│  GET  /ready             →  readiness (index loaded)    │
//	│                                                         │
//	└─────────────────────────────────────────────────────────┘
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - ratelimit.go: per-IP request rate limiting
//   - health.go: Health check endpoints (/health, /ready)
//   - chat.go: Chat and reset endpoints
//   - voice.go: Speech synthesis endpoints and audio serving
//   - twilio.go: Twilio SMS and voice webhooks
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/campusbot/campusbot/internal/log"
	"github.com/campusbot/campusbot/internal/twiml"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "0.0.0.0:5000"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Generation plus speech synthesis can take a while on a cold cache.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Answerer produces an answer for a question within a session.
// *chat.Engine satisfies this.
type Answerer interface {
	Answer(ctx context.Context, sessionID, query string) (string, error)
}

// SessionResetter clears a session's conversation history.
// *session.Store satisfies this.
type SessionResetter interface {
	Reset(sessionID string)
}

// Speaker converts text to cached audio clips. *voice.Synthesizer
// satisfies this.
type Speaker interface {
	Enabled() bool
	Synthesize(ctx context.Context, text string) (string, error)
	SynthesizeBestEffort(ctx context.Context, text string) string
	FilePath(filename string) (string, error)
}

// IndexStatus reports retrieval index readiness. *index.Manager satisfies this.
type IndexStatus interface {
	Ready() bool
	Count() int
}

// Config contains the dependencies for the HTTP server.
type Config struct {
	Answerer Answerer
	Sessions SessionResetter
	Index    IndexStatus
	Speaker  Speaker
	TwiML    twiml.Builder
	Logger   log.Logger

	// RateLimit is requests per second allowed per client IP.
	// Zero means DefaultRateLimit.
	RateLimit float64

	// RateBurst is the per-IP token bucket size. Zero means DefaultRateBurst.
	RateBurst int

	// TrustProxy enables X-Real-IP and X-Forwarded-For for client IP
	// extraction. Only set this behind a reverse proxy that strips
	// client-supplied values.
	TrustProxy bool
}

// Server is the HTTP server for the chatbot's REST API and webhooks.
type Server struct {
	mux        *http.ServeMux
	logger     log.Logger
	limiter    *ipLimiter
	trustProxy bool

	health *HealthHandler
	chat   *ChatHandler
	voice  *VoiceHandler
	twilio *TwilioHandler
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(cfg Config) *Server {
	mux := http.NewServeMux()

	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = DefaultRateBurst
	}

	s := &Server{
		mux:        mux,
		logger:     cfg.Logger,
		limiter:    newIPLimiter(cfg.RateLimit, cfg.RateBurst),
		trustProxy: cfg.TrustProxy,
		health:     NewHealthHandler(cfg.Index, cfg.Logger),
		chat:       NewChatHandler(cfg.Answerer, cfg.Sessions, cfg.Speaker, cfg.Logger),
		voice:      NewVoiceHandler(cfg.Speaker, cfg.Logger),
		twilio:     NewTwilioHandler(cfg.Answerer, cfg.Speaker, cfg.TwiML, cfg.Logger),
	}

	s.health.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.voice.RegisterRoutes(mux)
	s.twilio.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → rate limit → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
		rateLimitMiddleware(s.limiter, s.trustProxy, s.logger),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
