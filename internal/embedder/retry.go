package embedder

import (
	"context"
	"fmt"
	"time"

	"github.com/luxweb/luxrag-go/internal/logging"
	"github.com/luxweb/luxrag-go/internal/rag"
)

// RetryConfig tunes the bounded retry around embedding calls.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first
	// (default: 3).
	Attempts int

	// BaseDelay is the wait before the first retry; it doubles per attempt
	// (default: 500ms, capped at 5s).
	BaseDelay time.Duration
}

// maxRetryDelay caps the exponential backoff.
const maxRetryDelay = 5 * time.Second

// retryEmbedder wraps an Embedder with bounded exponential backoff for
// transient failures. Persistent failures are returned immediately.
type retryEmbedder struct {
	inner     rag.Embedder
	attempts  int
	baseDelay time.Duration
}

// WithRetry wraps inner so transient embedding-service failures are retried
// with exponential backoff. The final failure is returned unwrapped, so
// callers still see the underlying *rag.EmbeddingServiceError.
func WithRetry(inner rag.Embedder, cfg RetryConfig) rag.Embedder {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	return &retryEmbedder{inner: inner, attempts: cfg.Attempts, baseDelay: cfg.BaseDelay}
}

func (r *retryEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	log := logging.FromContext(ctx)

	var lastErr error
	delay := r.baseDelay
	for attempt := 1; attempt <= r.attempts; attempt++ {
		out, err := r.inner.Embed(ctx, texts)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !rag.IsTransient(err) || attempt == r.attempts {
			break
		}

		log.Warn("transient embedding failure, retrying",
			"attempt", attempt,
			"max_attempts", r.attempts,
			"delay", delay.String(),
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("embedder: retry aborted: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}

	return nil, lastErr
}
