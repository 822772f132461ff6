// Package agent orchestrates the service's three operations: turning an
// uploaded report into a session, answering follow-up questions against
// it, and tearing the session down.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glunkad/caresimplfyservice/internal/document"
	"github.com/glunkad/caresimplfyservice/internal/domain"
	"github.com/glunkad/caresimplfyservice/internal/llm"
	"github.com/glunkad/caresimplfyservice/internal/logging"
	"github.com/glunkad/caresimplfyservice/internal/session"
)

// RunnerConfig configures the runner.
type RunnerConfig struct {
	Model             string
	Fallbacks         []string
	MaxTokens         int
	Temperature       *float64
	MaxHistoryTurns   int
	RequestsPerMinute int
}

// UploadResult is the outcome of processing an uploaded report.
type UploadResult struct {
	SessionID        string `json:"session_id"`
	SimplifiedReport string `json:"simplified_report"`
}

// ChatResult is the outcome of one chat turn.
type ChatResult struct {
	SessionID string        `json:"sessionId"`
	Answer    string        `json:"answer"`
	Seq       int           `json:"seq"`
	Model     string        `json:"model,omitempty"`
	Usage     llm.Usage     `json:"usage"`
	Duration  time.Duration `json:"duration"`
}

// StreamCallback is called for each streaming event during ChatStream.
// Event types:
//   - "delta": Incremental answer text (Content field contains the text)
//   - "done": Final answer is ready (Response field contains full result)
//   - "error": Stream error occurred (Error field contains error message)
type StreamCallback func(event llm.StreamEvent)

// Runner drives report uploads and chat turns.
// It extracts documents, builds context, calls the LLM, and records turns.
type Runner struct {
	cfg      RunnerConfig
	client   *FailoverClient
	sessions session.Store
	preparer *document.Preparer
	locks    *sessionLocks
	log      *logging.Logger
}

// NewRunner creates a runner.
func NewRunner(
	cfg RunnerConfig,
	registry *llm.Registry,
	sessions session.Store,
	preparer *document.Preparer,
	log *logging.Logger,
) *Runner {
	fc := NewFailoverClient(registry, cfg.Model, cfg.Fallbacks, cfg.RequestsPerMinute, log)
	return &Runner{
		cfg:      cfg,
		client:   fc,
		sessions: sessions,
		preparer: preparer,
		locks:    newSessionLocks(),
		log:      log.Sub("agent"),
	}
}

// Upload extracts and simplifies a PDF report, creates a session seeded
// with the simplified text, and returns both.
func (r *Runner) Upload(ctx context.Context, pdf []byte) (*UploadResult, error) {
	start := time.Now()

	extracted, err := r.preparer.Extract(ctx, pdf)
	if err != nil {
		return nil, err
	}

	req := llm.CompletionRequest{
		Model:       r.cfg.Model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: BuildSimplifyPrompt(extracted)}},
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	}
	resp, err := r.client.Complete(ctx, req)
	if err != nil {
		return nil, domain.NewGateway(fmt.Errorf("simplifying report: %w", err))
	}

	simplified := strings.TrimSpace(resp.Content)
	if simplified == "" {
		return nil, domain.NewGateway(fmt.Errorf("model returned an empty simplification"))
	}

	id, err := r.sessions.Create(ctx, simplified)
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Str("sessionId", id).
		Int("pdfBytes", len(pdf)).
		Int("seedChars", len(simplified)).
		Dur("duration", time.Since(start)).
		Msg("report uploaded")

	return &UploadResult{SessionID: id, SimplifiedReport: simplified}, nil
}

// Chat answers one follow-up question against the session's report.
// The question/answer pair is recorded only if the LLM call succeeds.
func (r *Runner) Chat(ctx context.Context, sessionID, question string) (*ChatResult, error) {
	start := time.Now()

	if err := r.checkChatInput(sessionID, question); err != nil {
		return nil, err
	}

	// One turn at a time per session. The lock spans the history read,
	// the LLM call, and the append so concurrent questions on the same
	// session serialize instead of interleaving.
	r.locks.acquire(sessionID)
	defer r.locks.release(sessionID)

	sess, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	system, msgs := BuildContext(sess, question, r.cfg.MaxHistoryTurns)
	req := llm.CompletionRequest{
		Model:       r.cfg.Model,
		System:      system,
		Messages:    msgs,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	}

	resp, err := r.client.Complete(ctx, req)
	if err != nil {
		return nil, domain.NewGateway(fmt.Errorf("LLM completion: %w", err))
	}

	seq, err := r.sessions.AppendExchange(ctx, sessionID, question, resp.Content)
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Str("sessionId", sessionID).
		Str("model", resp.Model).
		Int("seq", seq).
		Int("inputTokens", resp.Usage.InputTokens).
		Int("outputTokens", resp.Usage.OutputTokens).
		Dur("duration", time.Since(start)).
		Msg("answer generated")

	return &ChatResult{
		SessionID: sessionID,
		Answer:    resp.Content,
		Seq:       seq,
		Model:     resp.Model,
		Usage:     resp.Usage,
		Duration:  time.Since(start),
	}, nil
}

// ChatStream answers a question with streaming output. Deltas are forwarded
// through cb as they arrive; the exchange is recorded once the stream
// completes successfully.
func (r *Runner) ChatStream(ctx context.Context, sessionID, question string, cb StreamCallback) (*ChatResult, error) {
	start := time.Now()

	if err := r.checkChatInput(sessionID, question); err != nil {
		return nil, err
	}

	r.locks.acquire(sessionID)
	defer r.locks.release(sessionID)

	sess, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	system, msgs := BuildContext(sess, question, r.cfg.MaxHistoryTurns)
	req := llm.CompletionRequest{
		Model:       r.cfg.Model,
		System:      system,
		Messages:    msgs,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
		Stream:      true,
	}

	ch, err := r.client.Stream(ctx, req)
	if err != nil {
		return nil, domain.NewGateway(fmt.Errorf("LLM stream: %w", err))
	}

	var fullContent string
	var streamResp *llm.CompletionResponse
	done := false
	for evt := range ch {
		switch evt.Type {
		case "delta":
			fullContent += evt.Content
			if cb != nil {
				cb(evt)
			}
		case "done":
			done = true
			if evt.Response != nil {
				streamResp = evt.Response
			}
		case "error":
			return nil, domain.NewGateway(fmt.Errorf("stream error: %s", evt.Error))
		}
	}
	// A channel that closes before the done event carries only part of the
	// answer; recording it would store a truncated exchange.
	if !done {
		return nil, domain.NewGateway(fmt.Errorf("stream ended before completion"))
	}

	answer := fullContent
	resp := streamResp
	if resp == nil {
		resp = &llm.CompletionResponse{Content: answer, Model: r.cfg.Model}
	} else if resp.Content != "" {
		answer = resp.Content
	}

	seq, err := r.sessions.AppendExchange(ctx, sessionID, question, answer)
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Str("sessionId", sessionID).
		Str("model", resp.Model).
		Int("seq", seq).
		Dur("duration", time.Since(start)).
		Msg("streaming answer generated")

	return &ChatResult{
		SessionID: sessionID,
		Answer:    answer,
		Seq:       seq,
		Model:     resp.Model,
		Usage:     resp.Usage,
		Duration:  time.Since(start),
	}, nil
}

// End tears the session down and returns a confirmation. Ending an already
// ended or unknown session returns the same confirmation.
func (r *Runner) End(ctx context.Context, sessionID string) (string, error) {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return "", err
	}
	if err := r.sessions.End(ctx, sessionID); err != nil {
		return "", err
	}

	r.log.Info().Str("sessionId", sessionID).Msg("session ended")
	return fmt.Sprintf("Session %s ended. Take care!", sessionID), nil
}

func (r *Runner) checkChatInput(sessionID, question string) error {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return err
	}
	if strings.TrimSpace(question) == "" {
		return domain.NewValidation("question must not be empty")
	}
	return nil
}
