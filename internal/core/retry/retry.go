// Package retry provides the bounded retry loop that wraps every posting
// operation. Optimistic-concurrency conflicts on stock items are transient;
// the loop replays the whole mutation from freshly loaded state instead of
// patching the conflicting row.
package retry

import (
	"context"
	"math/rand"
	"time"

	"stockcore/internal/core/apperror"
)

// DefaultAttempts is the bound on posting replays, the first call included.
const DefaultAttempts = 4

// Config controls the retry loop.
type Config struct {
	// Attempts is the total number of tries (>= 1).
	Attempts int

	// BaseDelay is the sleep before the second attempt; it doubles each
	// retry with up to 50% jitter to spread out competing posters.
	BaseDelay time.Duration
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Attempts:  DefaultAttempts,
		BaseDelay: 25 * time.Millisecond,
	}
}

// Do runs fn with the default configuration.
func Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return DoWithConfig(ctx, DefaultConfig(), fn)
}

// DoWithConfig runs fn up to cfg.Attempts times. Only concurrency conflicts
// are retried; every other error is returned immediately. fn must reload all
// state it mutates on each invocation. When attempts are exhausted the last
// conflict error is returned annotated with the attempt count so callers can
// distinguish "try again" from a rule violation.
func DoWithConfig(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}

	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !apperror.IsConcurrentModification(lastErr) {
			return lastErr
		}
		if attempt == cfg.Attempts {
			break
		}

		if delay > 0 {
			jittered := delay + time.Duration(rand.Int63n(int64(delay)/2+1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(jittered):
			}
			delay *= 2
		}
	}

	if appErr, ok := apperror.AsAppError(lastErr); ok {
		return appErr.WithDetail("attempts", cfg.Attempts)
	}
	return lastErr
}
