package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cityresilience/scenario-engine/internal/clock"
)

func TestDoSucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 3}, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	fc := clock.NewFakeClock(time.Unix(0, 0))
	cfg := Config{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: 4 * time.Second, Multiplier: 2, Clock: fc}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(context.Background(), cfg, func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient failure")
			}
			return nil
		})
	}()

	fc.BlockUntilWaiters(1)
	fc.Advance(time.Second)
	fc.BlockUntilWaiters(1)
	fc.Advance(2 * time.Second)

	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoReturnsLastErrorAfterMaxAttempts(t *testing.T) {
	fc := clock.NewFakeClock(time.Unix(0, 0))
	cfg := Config{MaxAttempts: 2, InitialDelay: time.Millisecond, Clock: fc}

	wantErr := errors.New("always fails")
	done := make(chan error, 1)
	go func() {
		done <- Do(context.Background(), cfg, func(ctx context.Context) error {
			return wantErr
		})
	}()

	fc.BlockUntilWaiters(1)
	fc.Advance(time.Millisecond)

	if err := <-done; !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}

func TestDoStopsWhenRetryableFuncReturnsFalse(t *testing.T) {
	permanentErr := errors.New("permanent failure")
	calls := 0
	err := Do(context.Background(), Config{
		MaxAttempts:   5,
		RetryableFunc: func(error) bool { return false },
	}, func(ctx context.Context) error {
		calls++
		return permanentErr
	})

	if !errors.Is(err, permanentErr) {
		t.Fatalf("expected %v, got %v", permanentErr, err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, DefaultConfig(), func(ctx context.Context) error {
		t.Fatal("fn should not be called with an already-cancelled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCombineReturnsTrueIfAnyMatch(t *testing.T) {
	always := func(error) bool { return false }
	never := func(error) bool { return false }
	yes := func(error) bool { return true }

	combined := Combine(always, never, yes)
	if !combined(errors.New("x")) {
		t.Fatal("expected Combine to return true when one predicate matches")
	}

	noneMatch := Combine(always, never)
	if noneMatch(errors.New("x")) {
		t.Fatal("expected Combine to return false when no predicate matches")
	}
}
