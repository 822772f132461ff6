package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/glunkad/caresimplfyservice/internal/llm"
	"github.com/glunkad/caresimplfyservice/internal/logging"
)

// retryBackoff is slept before the single in-provider retry.
const retryBackoff = 500 * time.Millisecond

// FailoverClient wraps an LLM registry to retry and try fallback providers
// on failure. An optional rate limiter throttles all outbound calls.
type FailoverClient struct {
	registry  *llm.Registry
	primary   string
	fallbacks []string
	limiter   *rate.Limiter
	sleep     func(time.Duration)
	log       *logging.Logger
}

// NewFailoverClient creates a client that tries the primary model first,
// then falls back through the list on retryable errors (429, 5xx,
// transient transport failures). Each provider gets one backed-off retry
// before the next is tried. requestsPerMinute of 0 disables throttling.
func NewFailoverClient(registry *llm.Registry, primary string, fallbacks []string, requestsPerMinute int, log *logging.Logger) *FailoverClient {
	var limiter *rate.Limiter
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute)
	}
	return &FailoverClient{
		registry:  registry,
		primary:   primary,
		fallbacks: fallbacks,
		limiter:   limiter,
		sleep:     time.Sleep,
		log:       log.Sub("failover"),
	}
}

func (f *FailoverClient) wait(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	return f.limiter.Wait(ctx)
}

// Complete tries the primary provider, falling back on retryable errors.
func (f *FailoverClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	models := append([]string{f.primary}, f.fallbacks...)

	var lastErr error
	for _, model := range models {
		client, err := f.registry.Resolve(model)
		if err != nil {
			f.log.Debug().Str("model", model).Err(err).Msg("no provider for model, skipping")
			lastErr = err
			continue
		}

		req.Model = model
		for attempt := 0; attempt < 2; attempt++ {
			if attempt > 0 {
				f.sleep(retryBackoff)
			}
			if err := f.wait(ctx); err != nil {
				return nil, err
			}

			resp, err := client.Complete(ctx, req)
			if err == nil {
				return resp, nil
			}
			lastErr = err

			if !isRetryable(err) {
				return nil, err
			}
			f.log.Warn().
				Str("model", model).
				Int("attempt", attempt+1).
				Err(err).
				Msg("retryable completion error")
		}
	}

	return nil, lastErr
}

// Stream tries the primary provider for streaming, with failover. Retries
// cover only stream setup; errors mid-stream surface as error events.
func (f *FailoverClient) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
	models := append([]string{f.primary}, f.fallbacks...)

	var lastErr error
	for _, model := range models {
		client, err := f.registry.Resolve(model)
		if err != nil {
			lastErr = err
			continue
		}

		req.Model = model
		for attempt := 0; attempt < 2; attempt++ {
			if attempt > 0 {
				f.sleep(retryBackoff)
			}
			if err := f.wait(ctx); err != nil {
				return nil, err
			}

			ch, err := client.Stream(ctx, req)
			if err == nil {
				return ch, nil
			}
			lastErr = err

			if !isRetryable(err) {
				return nil, err
			}
			f.log.Warn().
				Str("model", model).
				Int("attempt", attempt+1).
				Err(err).
				Msg("retryable stream error")
		}
	}

	return nil, lastErr
}

// isRetryable checks if the error suggests retrying or trying another provider.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var provErr *llm.ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Code {
		case 429, 500, 502, 503, 529:
			return true
		}
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "capacity") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection refused")
}
