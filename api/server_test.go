package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/campusbot/campusbot/internal/log"
	"github.com/campusbot/campusbot/internal/twiml"
)

// stubAnswerer records questions and returns a canned answer or error.
type stubAnswerer struct {
	mu       sync.Mutex
	answer   string
	err      error
	sessions []string
	queries  []string
}

func (s *stubAnswerer) Answer(_ context.Context, sessionID, query string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, sessionID)
	s.queries = append(s.queries, query)
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

// stubResetter records reset calls.
type stubResetter struct {
	mu    sync.Mutex
	reset []string
}

func (s *stubResetter) Reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset = append(s.reset, sessionID)
}

// stubSpeaker serves canned clips out of dir and records synthesized text.
type stubSpeaker struct {
	enabled bool
	url     string
	err     error
	dir     string

	mu     sync.Mutex
	spoken []string
}

func (s *stubSpeaker) Enabled() bool { return s.enabled }

func (s *stubSpeaker) Synthesize(_ context.Context, text string) (string, error) {
	if !s.enabled {
		return "", fmt.Errorf("disabled")
	}
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	return s.url, s.err
}

func (s *stubSpeaker) SynthesizeBestEffort(ctx context.Context, text string) string {
	url, err := s.Synthesize(ctx, text)
	if err != nil {
		return ""
	}
	return url
}

func (s *stubSpeaker) FilePath(filename string) (string, error) {
	if filename != filepath.Base(filename) || !strings.HasSuffix(filename, ".mp3") {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	path := filepath.Join(s.dir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

// stubIndex reports a fixed readiness state.
type stubIndex struct {
	ready bool
	count int
}

func (s *stubIndex) Ready() bool { return s.ready }
func (s *stubIndex) Count() int  { return s.count }

type testDeps struct {
	answerer *stubAnswerer
	sessions *stubResetter
	speaker  *stubSpeaker
	index    *stubIndex
}

func newTestServer(t *testing.T) (*Server, *testDeps) {
	t.Helper()
	deps := &testDeps{
		answerer: &stubAnswerer{answer: "Admissions open in June."},
		sessions: &stubResetter{},
		speaker:  &stubSpeaker{dir: t.TempDir()},
		index:    &stubIndex{ready: true, count: 10},
	}
	s := NewServer(Config{
		Answerer: deps.answerer,
		Sessions: deps.sessions,
		Index:    deps.index,
		Speaker:  deps.speaker,
		TwiML:    twiml.Builder{Institution: "Pune University"},
		Logger:   log.NewNop(),
	})
	return s, deps
}

// do runs a request through the full middleware chain.
func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestUnknownRouteIs404(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	h := chain(panicking, recoveryMiddleware(log.NewNop()), loggingMiddleware(log.NewNop()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestRunShutsDownOnContextCancel(t *testing.T) {
	s, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, "127.0.0.1:0")
	}()
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run returned %v, want nil after graceful shutdown", err)
	}
}
