package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/campusbot/campusbot/internal/index"
	"github.com/campusbot/campusbot/internal/log"
	"github.com/campusbot/campusbot/internal/session"
	"github.com/campusbot/campusbot/internal/testutil"
)

// stubRetriever returns canned chunks or a canned error.
type stubRetriever struct {
	results []index.Result
	err     error
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, _ int) ([]index.Result, error) {
	return s.results, s.err
}

// fastRetry avoids multi-second backoffs in failure tests.
func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:      1,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
	}
}

func newTestEngine(t *testing.T, mock *testutil.MockLLM, retriever Retriever) (*Engine, *session.Store) {
	t.Helper()

	g := genkit.Init(context.Background())
	require.NotNil(t, g)
	mock.RegisterModel(g)

	sessions := session.New(session.Config{}, log.NewNop())

	engine, err := New(Config{
		Genkit:      g,
		Retriever:   retriever,
		Sessions:    sessions,
		Logger:      log.NewNop(),
		ModelName:   "mock/test-model",
		RetryConfig: fastRetry(),
		RateLimiter: rate.NewLimiter(rate.Inf, 1),
	})
	require.NoError(t, err)
	return engine, sessions
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	g := genkit.Init(context.Background())
	sessions := session.New(session.Config{}, log.NewNop())
	retriever := &stubRetriever{}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing genkit", Config{Retriever: retriever, Sessions: sessions, Logger: log.NewNop(), ModelName: "m"}},
		{"missing retriever", Config{Genkit: g, Sessions: sessions, Logger: log.NewNop(), ModelName: "m"}},
		{"missing sessions", Config{Genkit: g, Retriever: retriever, Logger: log.NewNop(), ModelName: "m"}},
		{"missing logger", Config{Genkit: g, Retriever: retriever, Sessions: sessions, ModelName: "m"}},
		{"missing model", Config{Genkit: g, Retriever: retriever, Sessions: sessions, Logger: log.NewNop()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestAnswerUsesRetrievedContext(t *testing.T) {
	mock := testutil.NewMockLLM("fallback answer")
	mock.AddResponse("admission", "Applications open in June.")

	retriever := &stubRetriever{results: []index.Result{
		{Content: "Admissions open in June each year.", Similarity: 0.9},
		{Content: "The library is open until midnight.", Similarity: 0.4},
	}}
	engine, sessions := newTestEngine(t, mock, retriever)

	answer, err := engine.Answer(context.Background(), "default", "When do admissions open?")
	require.NoError(t, err)
	assert.Equal(t, "Applications open in June.", answer)

	// The single prompt must carry both retrieved chunks and the question.
	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].UserMessage, "Admissions open in June each year.")
	assert.Contains(t, calls[0].UserMessage, "The library is open until midnight.")
	assert.Contains(t, calls[0].UserMessage, "Question: When do admissions open?")

	// The exchange is recorded as one user/assistant pair.
	history := sessions.History("default")
	require.Len(t, history, 2)
	assert.Equal(t, session.Turn{Role: session.RoleUser, Content: "When do admissions open?"}, history[0])
	assert.Equal(t, session.Turn{Role: session.RoleAssistant, Content: "Applications open in June."}, history[1])
}

func TestAnswerRendersHistoryInPrompt(t *testing.T) {
	mock := testutil.NewMockLLM("ok")
	engine, sessions := newTestEngine(t, mock, &stubRetriever{})

	sessions.Append("s1", "What are the hostel fees?", "Hostel fees are 1200 per semester.")

	_, err := engine.Answer(context.Background(), "s1", "And for the summer term?")
	require.NoError(t, err)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].UserMessage, "Previous User Query: What are the hostel fees?")
	assert.Contains(t, calls[0].UserMessage, "Previous Response: Hostel fees are 1200 per semester.")
}

func TestAnswerCleansConversationalMarkers(t *testing.T) {
	mock := testutil.NewMockLLM("Admissions: Assistant: They open in June.")
	engine, sessions := newTestEngine(t, mock, &stubRetriever{})

	answer, err := engine.Answer(context.Background(), "default", "When do admissions open?")
	require.NoError(t, err)
	assert.Equal(t, "They open in June.", answer)

	// The cleaned form is what lands in history.
	history := sessions.History("default")
	require.Len(t, history, 2)
	assert.Equal(t, "They open in June.", history[1].Content)
}

func TestAnswerEmptyQuery(t *testing.T) {
	mock := testutil.NewMockLLM("ok")
	engine, sessions := newTestEngine(t, mock, &stubRetriever{})

	_, err := engine.Answer(context.Background(), "default", "   \n\t ")
	require.ErrorIs(t, err, ErrEmptyQuery)

	assert.Empty(t, mock.Calls())
	assert.Empty(t, sessions.History("default"))
}

func TestAnswerGenerationFailureYieldsApology(t *testing.T) {
	mock := testutil.NewMockLLM("ok")
	mock.SetError(errors.New("provider exploded"))
	engine, sessions := newTestEngine(t, mock, &stubRetriever{})

	answer, err := engine.Answer(context.Background(), "default", "When do admissions open?")
	require.NoError(t, err)
	assert.Equal(t, Apology, answer)

	// The apology is recorded so the session still reads coherently.
	history := sessions.History("default")
	require.Len(t, history, 2)
	assert.Equal(t, Apology, history[1].Content)
}

func TestAnswerRetrieverFailureYieldsApology(t *testing.T) {
	mock := testutil.NewMockLLM("ok")
	engine, _ := newTestEngine(t, mock, &stubRetriever{err: errors.New("index offline")})

	answer, err := engine.Answer(context.Background(), "default", "When do admissions open?")
	require.NoError(t, err)
	assert.Equal(t, Apology, answer)
	assert.Empty(t, mock.Calls())
}

func TestAnswerEmptyCompletionFallsBack(t *testing.T) {
	mock := testutil.NewMockLLM("")
	engine, _ := newTestEngine(t, mock, &stubRetriever{})

	answer, err := engine.Answer(context.Background(), "default", "When do admissions open?")
	require.NoError(t, err)
	assert.Equal(t, fallbackResponseMessage, answer)
}

func TestCleanResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "They open in June.", "They open in June."},
		{"strips through last assistant marker", "Admissions: Assistant: They open in June.", "They open in June."},
		{"strips through last user marker", "User: when? Assistant: in June. User: ok\nIn June.", "ok\nIn June."},
		{"trims whitespace", "  \n answer \n ", "answer"},
		{"empty", "", ""},
		{"marker only", "Assistant:", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanResponse(tt.in))
		})
	}
}

func TestRetryableError(t *testing.T) {
	t.Parallel()

	assert.False(t, retryableError(nil))
	assert.False(t, retryableError(errors.New("invalid api key")))
	assert.True(t, retryableError(errors.New("429 Too Many Requests")))
	assert.True(t, retryableError(errors.New("service unavailable")))
	assert.True(t, retryableError(errors.New("connection reset by peer")))
}

func TestExecuteWithRetryRecoversTransientError(t *testing.T) {
	t.Parallel()

	want := &ai.ModelResponse{Message: &ai.Message{
		Role:    ai.RoleModel,
		Content: []*ai.Part{ai.NewTextPart("recovered")},
	}}

	attempts := 0
	resp, err := executeWithRetry(context.Background(), fastRetry(), nil, log.NewNop(),
		func(context.Context) (*ai.ModelResponse, error) {
			attempts++
			if attempts == 1 {
				return nil, errors.New("503 service unavailable")
			}
			return want, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "recovered", resp.Text())
}

func TestExecuteWithRetryGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	attempts := 0
	_, err := executeWithRetry(context.Background(), fastRetry(), nil, log.NewNop(),
		func(context.Context) (*ai.ModelResponse, error) {
			attempts++
			return nil, errors.New("429 rate limit")
		})
	require.Error(t, err)
	assert.Equal(t, 2, attempts) // initial attempt + one retry
}
