// Package chat turns a student question into an answer.
//
// The Engine runs the full pipeline for one question: retrieve relevant
// knowledge base chunks, load the session history, compose a single prompt,
// call the model, clean the completion, and record the exchange. Callers
// always get a usable answer string; when the model call fails after
// retries the Engine answers with a fixed apology instead of surfacing
// the provider error.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/campusbot/campusbot/internal/index"
	"github.com/campusbot/campusbot/internal/log"
	"github.com/campusbot/campusbot/internal/session"
)

const (
	// Apology is returned whenever answer generation fails. It is recorded
	// in the session history like any other answer so the conversation
	// stays consistent with what the student actually saw.
	Apology = "I'm sorry, I encountered an error while processing your request. Please try again."

	// fallbackResponseMessage is returned when the model produces an empty
	// completion without erroring.
	fallbackResponseMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."
)

// ErrEmptyQuery indicates the caller passed a blank question.
// Blank input is the caller's mistake and is never answered with the apology.
var ErrEmptyQuery = errors.New("empty query")

// Retriever supplies knowledge base chunks relevant to a query.
// *index.Retriever satisfies this.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]index.Result, error)
}

// Config contains all required parameters for the Engine.
type Config struct {
	Genkit    *genkit.Genkit
	Retriever Retriever
	Sessions  *session.Store
	Logger    log.Logger

	// ModelName is the provider-qualified model name
	// (e.g. "googleai/gemini-2.5-flash", "openai/gpt-4o-mini").
	ModelName string

	// Institution names the school in the system instruction.
	// Empty uses "the university".
	Institution string

	// TopK is the number of chunks retrieved per question.
	// Zero uses index.DefaultTopK.
	TopK int

	// RetryConfig controls LLM retry behavior (zero-value uses defaults).
	RetryConfig RetryConfig

	// RateLimiter proactively limits model calls (nil = use default).
	RateLimiter *rate.Limiter
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Retriever == nil {
		return errors.New("retriever is required")
	}
	if cfg.Sessions == nil {
		return errors.New("session store is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Engine answers student questions against the knowledge base.
//
// Engine is stateless apart from its dependencies and is safe for
// concurrent use. All configuration is captured immutably at construction.
type Engine struct {
	modelName   string
	institution string
	topK        int

	retryConfig RetryConfig
	rateLimiter *rate.Limiter

	g         *genkit.Genkit
	retriever Retriever
	sessions  *session.Store
	logger    log.Logger
}

// New creates an Engine with required configuration.
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = index.DefaultTopK
	}

	institution := cfg.Institution
	if institution == "" {
		institution = "the university"
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	// Default: 10 requests/sec sustained, burst of 30.
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	return &Engine{
		modelName:   cfg.ModelName,
		institution: institution,
		topK:        topK,
		retryConfig: retryConfig,
		rateLimiter: rl,
		g:           cfg.Genkit,
		retriever:   cfg.Retriever,
		sessions:    cfg.Sessions,
		logger:      cfg.Logger,
	}, nil
}

// Answer runs the full pipeline for one question within the given session.
//
// The returned error is non-nil only for invalid input (ErrEmptyQuery).
// Retrieval and generation failures degrade to the apology answer, which
// is still recorded in the session history as the assistant turn.
func (e *Engine) Answer(ctx context.Context, sessionID, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}

	answer := e.compose(ctx, sessionID, query)
	e.sessions.Append(sessionID, query, answer)
	return answer, nil
}

// compose produces the answer text for query. It never fails: every error
// path resolves to the apology.
func (e *Engine) compose(ctx context.Context, sessionID, query string) string {
	chunks, err := e.retriever.Retrieve(ctx, query, e.topK)
	if err != nil {
		// Retrieval needs the embedding provider, so a failure here is the
		// same class of fault as a generation failure.
		e.logger.Error("retrieving context", "session_id", sessionID, "error", err)
		return Apology
	}

	history := e.sessions.History(sessionID)
	prompt := buildPrompt(e.institution, history, chunks, query)

	resp, err := e.generateWithRetry(ctx, prompt)
	if err != nil {
		e.logger.Error("generating answer", "session_id", sessionID, "error", err)
		return Apology
	}

	answer := cleanResponse(resp.Text())
	if answer == "" {
		e.logger.Warn("model returned empty response", "session_id", sessionID)
		return fallbackResponseMessage
	}

	e.logger.Debug("answered question",
		"session_id", sessionID,
		"chunks", len(chunks),
		"history_turns", len(history),
	)
	return answer
}

// generateWithRetry calls the model with rate limiting and exponential
// backoff for transient provider errors.
func (e *Engine) generateWithRetry(ctx context.Context, prompt string) (*ai.ModelResponse, error) {
	return executeWithRetry(ctx, e.retryConfig, e.rateLimiter, e.logger, func(ctx context.Context) (*ai.ModelResponse, error) {
		return genkit.Generate(ctx, e.g,
			ai.WithModelName(e.modelName),
			ai.WithPrompt(prompt),
		)
	})
}
