package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campusbot/campusbot/internal/app"
	"github.com/campusbot/campusbot/internal/config"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the vector index from the knowledge base",
	Long: `index re-reads the topic map and documents directory, splits them
into chunks, embeds every chunk, and replaces the persisted vector store.

Run this after editing the knowledge base; serve and ask load the
persisted index without re-embedding.`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()
	logger := newLogger()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	if err := a.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}

	fmt.Printf("Indexed %d chunks into %q\n", a.Index.Count(), cfg.IndexName)
	return nil
}
