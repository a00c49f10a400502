package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"stockcore/internal/core/apperror"
)

func fastConfig(attempts int) Config {
	return Config{Attempts: attempts, BaseDelay: time.Microsecond}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := DoWithConfig(context.Background(), fastConfig(4), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesConflictThenSucceeds(t *testing.T) {
	calls := 0
	err := DoWithConfig(context.Background(), fastConfig(4), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return apperror.NewConcurrentModification("stock_item", "x")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_NonConflictNotRetried(t *testing.T) {
	calls := 0
	want := apperror.NewValidation("bad input")
	err := DoWithConfig(context.Background(), fastConfig(4), func(ctx context.Context) error {
		calls++
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected validation error back, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ExhaustionKeepsConflictCode(t *testing.T) {
	calls := 0
	err := DoWithConfig(context.Background(), fastConfig(3), func(ctx context.Context) error {
		calls++
		return apperror.NewConcurrentModification("stock_item", "y")
	})
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if !apperror.IsConcurrentModification(err) {
		t.Fatalf("expected conflict error after exhaustion, got %v", err)
	}
	appErr, _ := apperror.AsAppError(err)
	if appErr.Details["attempts"] != 3 {
		t.Errorf("expected attempts detail 3, got %v", appErr.Details["attempts"])
	}
}

func TestDo_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := DoWithConfig(ctx, fastConfig(4), func(ctx context.Context) error {
		t.Fatal("fn must not run on canceled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
