// Package retry provides exponential backoff with jitter and a
// batch-coalescing debounce timer, used by the graph adapters, the
// embedding client, and anything else that needs to ride out
// transient failures (§4.3, §5).
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/graphindex/core/internal/errs"
)

// Policy configures exponential backoff.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultPolicy matches the embedding client's defaults (§5): 3
// retries, 30s-scoped timeouts live at the call site, not here.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
	}
}

// Delay returns the backoff delay for the given attempt (0-indexed),
// including jitter up to 50% of the computed delay.
func (p Policy) Delay(attempt int) time.Duration {
	base := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		base *= p.Multiplier
	}
	if d := time.Duration(base); d > p.MaxDelay {
		base = float64(p.MaxDelay)
	}
	jitter := base * 0.5 * rand.Float64()
	return time.Duration(base + jitter)
}

// Do runs fn, retrying on errors classified retryable by
// errs.IsRetryable, up to p.MaxRetries additional attempts. It stops
// immediately on a non-retryable error or when ctx is done.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !errs.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return lastErr
}
