package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/campusbot/campusbot/internal/chat"
	"github.com/campusbot/campusbot/internal/config"
	"github.com/campusbot/campusbot/internal/index"
	"github.com/campusbot/campusbot/internal/knowledge"
	"github.com/campusbot/campusbot/internal/log"
	"github.com/campusbot/campusbot/internal/session"
	"github.com/campusbot/campusbot/internal/voice"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup. Call Close() to release.
//
// The index is opened but not built: callers that need a populated index
// (serve, ask) call EnsureIndex afterwards, and the index command uses
// Rebuild directly.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	appCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	g, err := provideGenkit(appCtx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	idx, err := index.Open(cfg.IndexDir, cfg.IndexName, index.NewEmbeddingFunc(embedder), logger)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	a.Index = idx

	a.Sessions = session.New(session.Config{
		MaxPairs: cfg.SessionMaxPairs,
		TTL:      cfg.SessionTTL,
	}, logger)
	a.Sessions.StartJanitor(appCtx, session.DefaultSweepInterval)

	synth, err := voice.New(voice.Config{
		APIKey:   cfg.ElevenLabsAPIKey,
		VoiceID:  cfg.ElevenLabsVoiceID,
		CacheDir: cfg.AudioCacheDir,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating voice synthesizer: %w", err)
	}
	a.Voice = synth

	engine, err := chat.New(chat.Config{
		Genkit:      g,
		Retriever:   index.NewRetriever(idx, logger),
		Sessions:    a.Sessions,
		Logger:      logger,
		ModelName:   cfg.FullModelName(),
		Institution: cfg.Institution,
		TopK:        cfg.TopK,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat engine: %w", err)
	}
	a.Engine = engine

	return a, nil
}

// provideGenkit initializes Genkit with the configured AI provider plugin.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // "googleai"
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
		logger.Info("initialized Genkit with googleai provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the AI provider plugin.
// Each provider registers embedders differently:
//   - googleai: GoogleAIEmbedder(g, modelName)
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName(config.ProviderOpenAI, cfg.EmbedderModel))
	default: // "googleai"
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// loadChunks reads the knowledge base sources and splits them for indexing.
// The topic map is required; the documents directory is optional and
// per-file extraction failures there only reduce coverage.
func loadChunks(cfg *config.Config, logger log.Logger) ([]knowledge.Document, error) {
	docs, err := knowledge.LoadTopicMap(cfg.KnowledgeFile)
	if err != nil {
		return nil, fmt.Errorf("loading topic map: %w", err)
	}

	extra, failed, err := knowledge.LoadDirectory(cfg.DocumentsDir, logger)
	if err != nil {
		logger.Warn("skipping documents directory", "dir", cfg.DocumentsDir, "error", err)
	} else {
		if failed > 0 {
			logger.Warn("some documents failed to load", "failed", failed)
		}
		docs = append(docs, extra...)
	}

	splitter := knowledge.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	chunks := splitter.Split(docs)

	logger.Info("knowledge base loaded",
		"documents", len(docs),
		"chunks", len(chunks),
	)
	return chunks, nil
}

// EnsureIndex builds the index from the knowledge base sources when the
// persisted collection is missing or empty. An intact on-disk index loads
// without touching the embedding provider.
func (a *App) EnsureIndex(ctx context.Context) error {
	if a.Index.Ready() && a.Index.Count() > 0 {
		a.Logger.Info("index loaded from disk", "chunks", a.Index.Count())
		return nil
	}
	return a.Rebuild(ctx)
}

// Rebuild re-reads the knowledge base and replaces the index contents.
func (a *App) Rebuild(ctx context.Context) error {
	chunks, err := loadChunks(a.Config, a.Logger)
	if err != nil {
		return err
	}
	if err := a.Index.Build(ctx, chunks); err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	a.Logger.Info("index built", "chunks", a.Index.Count())
	return nil
}
