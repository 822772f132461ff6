package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glunkad/caresimplfyservice/internal/document"
	"github.com/glunkad/caresimplfyservice/internal/domain"
	"github.com/glunkad/caresimplfyservice/internal/llm"
	"github.com/glunkad/caresimplfyservice/internal/logging"
	"github.com/glunkad/caresimplfyservice/internal/session"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func testRegistry(mock llm.Client) *llm.Registry {
	reg := llm.NewRegistry(silentLog())
	reg.Register("mock", mock)
	reg.SetFallback("mock")
	return reg
}

// fixedRunner returns canned pdftotext output regardless of input.
type fixedRunner struct {
	output string
	err    error
}

func (f fixedRunner) Run(context.Context, string, ...string) ([]byte, error) {
	return []byte(f.output), f.err
}

func testPreparer(output string) *document.Preparer {
	return document.NewPreparerWithRunner(fixedRunner{output: output})
}

func testRunner(mock llm.Client, store session.Store) *Runner {
	return NewRunner(
		RunnerConfig{Model: "mock", MaxTokens: 500, MaxHistoryTurns: 10},
		testRegistry(mock),
		store,
		testPreparer("Hemoglobin: 13.5 g/dL. Glucose: 98 mg/dL."),
		silentLog(),
	)
}

// --- Upload tests ---

func TestRunnerUpload(t *testing.T) {
	mock := &llm.MockClient{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			require.Len(t, req.Messages, 1)
			assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
			assert.Contains(t, req.Messages[0].Content, "Hemoglobin")
			return &llm.CompletionResponse{Content: "Your blood counts look healthy."}, nil
		},
	}
	store := session.NewMemoryStore()
	runner := testRunner(mock, store)

	result, err := runner.Upload(context.Background(), []byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	assert.Equal(t, "Your blood counts look healthy.", result.SimplifiedReport)
	require.NoError(t, domain.ValidateSessionID(result.SessionID))

	sess, err := store.Get(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Your blood counts look healthy.", sess.SeedDocument)
	assert.Empty(t, sess.Turns)
}

func TestRunnerUploadEmptyPDF(t *testing.T) {
	runner := testRunner(&llm.MockClient{}, session.NewMemoryStore())

	_, err := runner.Upload(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrDocument)
}

func TestRunnerUploadLLMFailure(t *testing.T) {
	mock := &llm.MockClient{
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, &llm.ProviderError{Provider: "mock", Message: "bad request", Code: 400}
		},
	}
	store := session.NewMemoryStore()
	runner := testRunner(mock, store)

	_, err := runner.Upload(context.Background(), []byte("pdf"))
	assert.ErrorIs(t, err, domain.ErrGateway)
	assert.Equal(t, 0, store.Len())
}

// --- Chat tests ---

func TestRunnerChat(t *testing.T) {
	mock := &llm.MockClient{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			if len(req.Messages) == 1 && strings.Contains(req.Messages[0].Content, "Rewrite") {
				return &llm.CompletionResponse{Content: "Simple report."}, nil
			}
			assert.Contains(t, req.System, "Natasha")
			assert.Contains(t, req.System, "Simple report.")
			last := req.Messages[len(req.Messages)-1]
			assert.Equal(t, llm.RoleUser, last.Role)
			return &llm.CompletionResponse{
				Content: "That value is in the normal range.",
				Model:   "mock-model",
				Usage:   llm.Usage{InputTokens: 20, OutputTokens: 10},
			}, nil
		},
	}
	store := session.NewMemoryStore()
	runner := testRunner(mock, store)

	up, err := runner.Upload(context.Background(), []byte("pdf"))
	require.NoError(t, err)

	result, err := runner.Chat(context.Background(), up.SessionID, "Is my glucose okay?")
	require.NoError(t, err)
	assert.Equal(t, "That value is in the normal range.", result.Answer)
	assert.Equal(t, 2, result.Seq)
	assert.Equal(t, 20, result.Usage.InputTokens)

	sess, err := store.Get(context.Background(), up.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.Turns, 2)
	assert.Equal(t, "Is my glucose okay?", sess.Turns[0].Content)
	assert.Equal(t, "That value is in the normal range.", sess.Turns[1].Content)
}

func TestRunnerChatValidation(t *testing.T) {
	runner := testRunner(&llm.MockClient{}, session.NewMemoryStore())
	ctx := context.Background()

	_, err := runner.Chat(ctx, "", "question")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = runner.Chat(ctx, "not-a-uuid", "question")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = runner.Chat(ctx, "3b3c1f9e-0000-0000-0000-000000000000", "   ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRunnerChatUnknownSession(t *testing.T) {
	runner := testRunner(&llm.MockClient{}, session.NewMemoryStore())

	_, err := runner.Chat(context.Background(), "3b3c1f9e-0000-0000-0000-000000000000", "q")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRunnerChatLLMFailureRecordsNothing(t *testing.T) {
	calls := 0
	mock := &llm.MockClient{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			calls++
			if calls == 1 {
				return &llm.CompletionResponse{Content: "Simple report."}, nil
			}
			return nil, &llm.ProviderError{Provider: "mock", Message: "invalid key", Code: 401}
		},
	}
	store := session.NewMemoryStore()
	runner := testRunner(mock, store)

	up, err := runner.Upload(context.Background(), []byte("pdf"))
	require.NoError(t, err)

	_, err = runner.Chat(context.Background(), up.SessionID, "Is my glucose okay?")
	assert.ErrorIs(t, err, domain.ErrGateway)

	// A failed turn leaves no partial exchange behind.
	sess, err := store.Get(context.Background(), up.SessionID)
	require.NoError(t, err)
	assert.Empty(t, sess.Turns)
}

func TestRunnerChatConcurrentTurns(t *testing.T) {
	var calls atomic.Int32
	mock := &llm.MockClient{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			n := calls.Add(1)
			if n == 1 {
				return &llm.CompletionResponse{Content: "Simple report."}, nil
			}
			return &llm.CompletionResponse{Content: fmt.Sprintf("answer %d", n)}, nil
		},
	}
	store := session.NewMemoryStore()
	runner := testRunner(mock, store)

	up, err := runner.Upload(context.Background(), []byte("pdf"))
	require.NoError(t, err)

	const turns = 10
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := runner.Chat(context.Background(), up.SessionID, fmt.Sprintf("question %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sess, err := store.Get(context.Background(), up.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.Turns, turns*2)
	for i, turn := range sess.Turns {
		assert.Equal(t, i+1, turn.Seq)
		if i%2 == 0 {
			assert.Equal(t, domain.RoleUser, turn.Role)
		} else {
			assert.Equal(t, domain.RoleAssistant, turn.Role)
		}
	}
}

// --- End tests ---

func TestRunnerEnd(t *testing.T) {
	calls := 0
	mock := &llm.MockClient{
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			calls++
			return &llm.CompletionResponse{Content: "Simple report."}, nil
		},
	}
	store := session.NewMemoryStore()
	runner := testRunner(mock, store)

	up, err := runner.Upload(context.Background(), []byte("pdf"))
	require.NoError(t, err)

	msg, err := runner.End(context.Background(), up.SessionID)
	require.NoError(t, err)
	assert.Contains(t, msg, up.SessionID)

	// Ending again is a no-op with the same confirmation.
	again, err := runner.End(context.Background(), up.SessionID)
	require.NoError(t, err)
	assert.Equal(t, msg, again)

	_, err = runner.Chat(context.Background(), up.SessionID, "q")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRunnerEndUnknownSession(t *testing.T) {
	// Any well-formed id gets the confirmation, even if no such session
	// ever existed; only garbage ids are rejected.
	runner := testRunner(&llm.MockClient{}, session.NewMemoryStore())
	id := "3b3c1f9e-0000-0000-0000-000000000000"
	msg, err := runner.End(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, msg, id)
}

func TestRunnerEndInvalidID(t *testing.T) {
	runner := testRunner(&llm.MockClient{}, session.NewMemoryStore())
	_, err := runner.End(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
