// Package cmd implements the campusbot command line interface.
package cmd

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/campusbot/campusbot/internal/log"
)

var (
	logLevel string
	logJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "campusbot",
	Short: "University support chatbot over chat, SMS, and voice",
	Long: `campusbot answers student questions from a curated knowledge base.

It indexes the knowledge base into a local vector store, retrieves the
most relevant passages for each question, and asks an LLM to answer from
them. The serve command exposes the bot over an HTTP chat API and Twilio
SMS and voice webhooks.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON instead of text")
}

// newLogger builds the process logger from the persistent flags.
func newLogger() log.Logger {
	return log.New(log.Config{
		Level: parseLevel(logLevel),
		JSON:  logJSON,
	})
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
