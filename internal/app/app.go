// Package app provides application initialization and dependency injection.
//
// App is the core container that wires the chatbot together: Genkit and
// the provider plugins, the embedding-backed vector index, the session
// store, the voice synthesizer, and the answer engine. Commands construct
// an App once and use its components.
package app

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/campusbot/campusbot/api"
	"github.com/campusbot/campusbot/internal/chat"
	"github.com/campusbot/campusbot/internal/config"
	"github.com/campusbot/campusbot/internal/index"
	"github.com/campusbot/campusbot/internal/log"
	"github.com/campusbot/campusbot/internal/session"
	"github.com/campusbot/campusbot/internal/twiml"
	"github.com/campusbot/campusbot/internal/voice"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Core services
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Index    *index.Manager
	Sessions *session.Store
	Voice    *voice.Synthesizer
	Engine   *chat.Engine

	// Lifecycle management
	cancel context.CancelFunc
}

// Close releases application resources. The session janitor and any other
// background work stop with the app context.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}

// Server builds the HTTP server over the app's components.
func (a *App) Server() *api.Server {
	return api.NewServer(api.Config{
		Answerer: a.Engine,
		Sessions: a.Sessions,
		Index:    a.Index,
		Speaker:  a.Voice,
		TwiML: twiml.Builder{
			Institution: a.Config.Institution,
			Language:    a.Config.Language,
		},
		Logger:     a.Logger,
		RateLimit:  a.Config.RateLimit,
		RateBurst:  a.Config.RateBurst,
		TrustProxy: a.Config.TrustProxy,
	})
}
