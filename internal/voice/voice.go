// Package voice synthesizes spoken answers with the ElevenLabs API.
//
// Generated clips are cached on disk keyed by a hash of the text, so a
// repeated answer (the fixed voice prompts especially) is synthesized once.
// The synthesizer is optional: without an API key it reports itself
// disabled and callers fall back to Twilio's built-in TTS.
package voice

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/campusbot/campusbot/internal/log"
)

const (
	// APIBase is the base URL for the ElevenLabs API.
	APIBase = "https://api.elevenlabs.io"

	// DefaultVoiceID is the voice used when none is configured.
	DefaultVoiceID = "EXAVITQu4vr4xnSDxMaL"

	// AudioRoute is the URL prefix under which cached clips are served.
	AudioRoute = "/audio/"

	defaultTimeout = 30 * time.Second
	modelID        = "eleven_monolingual_v1"
)

// ErrDisabled indicates no API key is configured.
var ErrDisabled = errors.New("voice synthesis disabled: no API key")

// Config contains parameters for the Synthesizer.
type Config struct {
	// APIKey is the ElevenLabs key. Empty disables synthesis.
	APIKey string

	// VoiceID selects the ElevenLabs voice (empty uses DefaultVoiceID).
	VoiceID string

	// BaseURL overrides the API endpoint (tests point this at a fake server).
	BaseURL string

	// CacheDir is where generated mp3 files are stored.
	CacheDir string

	// HTTPClient overrides the default client (nil uses a 30s timeout client).
	HTTPClient *http.Client

	Logger log.Logger
}

// Synthesizer converts answer text to cached mp3 clips.
// Safe for concurrent use.
type Synthesizer struct {
	apiKey   string
	voiceID  string
	baseURL  string
	cacheDir string
	client   *http.Client
	logger   log.Logger
}

// New creates a Synthesizer and its cache directory.
func New(cfg Config) (*Synthesizer, error) {
	if cfg.CacheDir == "" {
		return nil, errors.New("cache dir is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audio cache dir: %w", err)
	}

	voiceID := cfg.VoiceID
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = APIBase
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	if cfg.APIKey == "" {
		cfg.Logger.Info("voice synthesis disabled: no ElevenLabs API key")
	}

	return &Synthesizer{
		apiKey:   cfg.APIKey,
		voiceID:  voiceID,
		baseURL:  baseURL,
		cacheDir: cfg.CacheDir,
		client:   client,
		logger:   cfg.Logger,
	}, nil
}

// Enabled reports whether an API key is configured.
func (s *Synthesizer) Enabled() bool {
	return s.apiKey != ""
}

// ttsRequest is the ElevenLabs text-to-speech request body.
type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize converts text to speech and returns the public URL path of
// the cached clip (e.g. "/audio/3f2a….mp3"). A cache hit skips the API
// entirely.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty text")
	}

	filename := s.cacheKey(text)
	path := filepath.Join(s.cacheDir, filename)
	if _, err := os.Stat(path); err == nil {
		s.logger.Debug("audio cache hit", "file", filename)
		return AudioRoute + filename, nil
	}

	audio, err := s.fetch(ctx, text)
	if err != nil {
		return "", err
	}

	// Write-then-rename keeps concurrent requests from serving a partial file.
	tmp, err := os.CreateTemp(s.cacheDir, filename+".tmp*")
	if err != nil {
		return "", fmt.Errorf("creating audio file: %w", err)
	}
	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing audio file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("closing audio file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("caching audio file: %w", err)
	}

	s.logger.Debug("synthesized audio", "file", filename, "bytes", len(audio))
	return AudioRoute + filename, nil
}

// SynthesizeBestEffort returns the clip URL or "" when synthesis is
// disabled or fails. Webhook handlers use this so a TTS outage degrades
// to Twilio's built-in voice instead of failing the call.
func (s *Synthesizer) SynthesizeBestEffort(ctx context.Context, text string) string {
	url, err := s.Synthesize(ctx, text)
	if err != nil {
		if !errors.Is(err, ErrDisabled) {
			s.logger.Warn("voice synthesis failed", "error", err)
		}
		return ""
	}
	return url
}

// FilePath resolves a clip filename from the audio route to its on-disk
// path. Names with path separators or the wrong extension are rejected so
// the handler cannot be walked out of the cache directory.
func (s *Synthesizer) FilePath(filename string) (string, error) {
	if filename != filepath.Base(filename) || strings.Contains(filename, "..") {
		return "", fmt.Errorf("invalid audio filename %q", filename)
	}
	if !strings.HasSuffix(filename, ".mp3") {
		return "", fmt.Errorf("invalid audio filename %q", filename)
	}
	path := filepath.Join(s.cacheDir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("audio file %q: %w", filename, err)
	}
	return path, nil
}

// fetch calls the ElevenLabs text-to-speech endpoint.
func (s *Synthesizer) fetch(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(ttsRequest{
		Text:    text,
		ModelID: modelID,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.5,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling tts request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", s.baseURL, s.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating tts request: %w", err)
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling elevenlabs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("elevenlabs API error (status %d): %s", resp.StatusCode, string(msg))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio response: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("elevenlabs returned empty audio")
	}
	return audio, nil
}

// cacheKey derives the clip filename from the text and voice so changing
// the configured voice does not serve stale clips.
func (s *Synthesizer) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(s.voiceID + "\x00" + text))
	return hex.EncodeToString(sum[:8]) + ".mp3"
}
