// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.campusbot/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// A .env file in the working directory is loaded into the environment
// first, matching how the bot is deployed alongside its knowledge base.
//
// Main configuration categories:
//   - AI: provider, model, embedder
//   - Knowledge: topic map file, documents directory, chunking
//   - Index: vector store location and retrieval depth
//   - Sessions: history bounds
//   - Voice: ElevenLabs synthesis
//   - Server: listen address
//
// Security: API keys are never logged; config directory uses 0750 permissions.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidChunking indicates the chunk size or overlap is out of range.
	ErrInvalidChunking = errors.New("invalid chunking")

	// ErrInvalidTopK indicates the retrieval depth is out of range.
	ErrInvalidTopK = errors.New("invalid top k")

	// ErrInvalidSessionLimits indicates the session bounds are out of range.
	ErrInvalidSessionLimits = errors.New("invalid session limits")

	// ErrInvalidRateLimit indicates the HTTP rate limit settings are out of range.
	ErrInvalidRateLimit = errors.New("invalid rate limit")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
)

// Default model selections per provider.
const (
	DefaultGoogleAIModel    = "gemini-2.5-flash"
	DefaultGoogleAIEmbedder = "gemini-embedding-001"
	DefaultOpenAIModel      = "gpt-4o-mini"
	DefaultOpenAIEmbedder   = "text-embedding-3-small"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (API keys, tokens), update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider" json:"provider"`             // "googleai" (default) or "openai"
	ModelName     string `mapstructure:"model_name" json:"model_name"`         // Model identifier (e.g. "gemini-2.5-flash", "gpt-4o-mini")
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"` // Embedding model identifier

	// Bot identity
	Institution string `mapstructure:"institution" json:"institution"` // School name used in prompts and greetings
	Language    string `mapstructure:"language" json:"language"`       // Speech recognition locale for voice calls

	// Knowledge base sources
	KnowledgeFile string `mapstructure:"knowledge_file" json:"knowledge_file"` // Topic map JSON
	DocumentsDir  string `mapstructure:"documents_dir" json:"documents_dir"`   // Supplemental PDF/DOCX/TXT directory
	ChunkSize     int    `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap  int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Vector index
	IndexDir  string `mapstructure:"index_dir" json:"index_dir"`   // On-disk vector store location
	IndexName string `mapstructure:"index_name" json:"index_name"` // Collection name within the store
	TopK      int    `mapstructure:"top_k" json:"top_k"`           // Chunks retrieved per question

	// Session bounds
	SessionMaxPairs int           `mapstructure:"session_max_pairs" json:"session_max_pairs"`
	SessionTTL      time.Duration `mapstructure:"session_ttl" json:"session_ttl"`

	// Voice synthesis
	ElevenLabsAPIKey  string `mapstructure:"elevenlabs_api_key" json:"elevenlabs_api_key"` // SENSITIVE: masked in MarshalJSON
	ElevenLabsVoiceID string `mapstructure:"elevenlabs_voice_id" json:"elevenlabs_voice_id"`
	AudioCacheDir     string `mapstructure:"audio_cache_dir" json:"audio_cache_dir"`

	// HTTP server
	Addr       string  `mapstructure:"addr" json:"addr"`
	RateLimit  float64 `mapstructure:"rate_limit" json:"rate_limit"`   // Requests per second per client IP
	RateBurst  int     `mapstructure:"rate_burst" json:"rate_burst"`   // Token bucket size per client IP
	TrustProxy bool    `mapstructure:"trust_proxy" json:"trust_proxy"` // Honor X-Real-IP / X-Forwarded-For
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Best-effort: a missing .env file is the normal case in production.
	_ = godotenv.Load()

	// Configuration directory: ~/.campusbot/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".campusbot")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v)
	bindEnvVariables(v)

	// Read configuration file (if exists)
	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Fill provider-dependent model defaults after the provider is known.
	cfg.applyModelDefaults()

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// AI defaults (model names are provider-dependent, see applyModelDefaults)
	v.SetDefault("provider", ProviderGoogleAI)

	// Bot identity defaults
	v.SetDefault("institution", "Pune University")
	v.SetDefault("language", "en-IN")

	// Knowledge base defaults
	v.SetDefault("knowledge_file", "knowledge/knowledge_base.json")
	v.SetDefault("documents_dir", "knowledge/documents")
	v.SetDefault("chunk_size", 1000)
	v.SetDefault("chunk_overlap", 100)

	// Index defaults
	v.SetDefault("index_dir", "vector_stores")
	v.SetDefault("index_name", "university")
	v.SetDefault("top_k", 3)

	// Session defaults
	v.SetDefault("session_max_pairs", 50)
	v.SetDefault("session_ttl", 30*time.Minute)

	// Voice defaults
	v.SetDefault("elevenlabs_voice_id", "EXAVITQu4vr4xnSDxMaL")
	v.SetDefault("audio_cache_dir", "static/audio_cache")

	// Server defaults
	v.SetDefault("addr", "0.0.0.0:5000")
	v.SetDefault("rate_limit", 10.0)
	v.SetDefault("rate_burst", 30)
	v.SetDefault("trust_proxy", false)
}

// bindEnvVariables binds environment variables explicitly.
//
// Secrets:
//  1. GEMINI_API_KEY - read directly by Genkit (not via Viper), validated in cfg.Validate()
//  2. OPENAI_API_KEY - read directly by the Genkit OpenAI plugin, validated in cfg.Validate()
//  3. ELEVENLABS_API_KEY - voice synthesis (optional; absence disables voice)
func bindEnvVariables(v *viper.Viper) {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "CAMPUSBOT_PROVIDER")
	mustBind("model_name", "CAMPUSBOT_MODEL_NAME")
	mustBind("embedder_model", "CAMPUSBOT_EMBEDDER_MODEL")
	mustBind("institution", "CAMPUSBOT_INSTITUTION")
	mustBind("language", "CAMPUSBOT_LANGUAGE")
	mustBind("knowledge_file", "CAMPUSBOT_KNOWLEDGE_FILE")
	mustBind("documents_dir", "CAMPUSBOT_DOCUMENTS_DIR")
	mustBind("chunk_size", "CAMPUSBOT_CHUNK_SIZE")
	mustBind("chunk_overlap", "CAMPUSBOT_CHUNK_OVERLAP")
	mustBind("index_dir", "CAMPUSBOT_INDEX_DIR")
	mustBind("index_name", "CAMPUSBOT_INDEX_NAME")
	mustBind("top_k", "CAMPUSBOT_TOP_K")
	mustBind("session_max_pairs", "CAMPUSBOT_SESSION_MAX_PAIRS")
	mustBind("session_ttl", "CAMPUSBOT_SESSION_TTL")
	mustBind("addr", "CAMPUSBOT_ADDR")
	mustBind("rate_limit", "CAMPUSBOT_RATE_LIMIT")
	mustBind("rate_burst", "CAMPUSBOT_RATE_BURST")
	mustBind("trust_proxy", "CAMPUSBOT_TRUST_PROXY")

	mustBind("elevenlabs_api_key", "ELEVENLABS_API_KEY")
	mustBind("elevenlabs_voice_id", "ELEVENLABS_VOICE_ID")
	mustBind("audio_cache_dir", "CAMPUSBOT_AUDIO_CACHE_DIR")
}

// applyModelDefaults fills ModelName and EmbedderModel based on the
// selected provider when they were not configured explicitly.
func (c *Config) applyModelDefaults() {
	switch c.Provider {
	case ProviderOpenAI:
		if c.ModelName == "" {
			c.ModelName = DefaultOpenAIModel
		}
		if c.EmbedderModel == "" {
			c.EmbedderModel = DefaultOpenAIEmbedder
		}
	default:
		if c.ModelName == "" {
			c.ModelName = DefaultGoogleAIModel
		}
		if c.EmbedderModel == "" {
			c.EmbedderModel = DefaultGoogleAIEmbedder
		}
	}
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "openai/gpt-4o-mini".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.ModelName
	default:
		return ProviderGoogleAI + "/" + c.ModelName
	}
}

// VoiceEnabled reports whether speech synthesis is configured.
func (c *Config) VoiceEnabled() bool {
	return c.ElevenLabsAPIKey != ""
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid substring matching against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - ElevenLabsAPIKey
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.ElevenLabsAPIKey = maskSecret(a.ElevenLabsAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
