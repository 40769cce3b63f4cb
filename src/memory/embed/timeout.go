package embed

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable reports that the provider could not produce an embedding
// within its timeout budget. Callers degrade to non-semantic signals instead
// of failing the retrieval.
var ErrUnavailable = errors.New("embedding provider unavailable")

// TimeoutEmbedder enforces a per-call timeout and permits at most one retry
// before reporting the provider unavailable. It never retries when the
// caller's own context is done.
type TimeoutEmbedder struct {
	inner   Embedder
	timeout time.Duration
}

// NewTimeoutEmbedder wraps inner with a per-call timeout budget.
func NewTimeoutEmbedder(inner Embedder, timeout time.Duration) *TimeoutEmbedder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TimeoutEmbedder{inner: inner, timeout: timeout}
}

func (t *TimeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := t.attempt(ctx, text)
	if err == nil {
		return vec, nil
	}
	if ctx.Err() != nil {
		return nil, errors.Join(ErrUnavailable, ctx.Err())
	}
	// One bounded retry, then give up.
	vec, err = t.attempt(ctx, text)
	if err == nil {
		return vec, nil
	}
	return nil, errors.Join(ErrUnavailable, err)
}

func (t *TimeoutEmbedder) attempt(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	vec, err := t.inner.Embed(callCtx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, ErrNotSupported
	}
	return vec, nil
}
