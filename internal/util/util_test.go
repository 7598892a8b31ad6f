package util

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, func(context.Context) error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3
	sentinel := errors.New("persistent error")

	err := Retry(context.Background(), maxAttempts, 0, func(context.Context) error {
		attempts++
		return sentinel
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("Retry error = %v, want wrapped %v", err, sentinel)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("Retry error = %q, want attempt count annotation", err)
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, time.Hour, func(context.Context) error {
		return errors.New("always fails")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Retry with cancelled context = %v, want context.Canceled", err)
	}
}

func TestRateLimiterFirstTokenImmediate(t *testing.T) {
	rl := NewRateLimiter(60)

	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first Wait took %v, want immediate", elapsed)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0)
	for i := 0; i < 100; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("disabled limiter Wait returned error: %v", err)
		}
	}
}

func TestRateLimiterCancelled(t *testing.T) {
	rl := NewRateLimiter(1) // one per minute: second token is far away
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait under deadline = %v, want context.DeadlineExceeded", err)
	}
}

func TestNewLogger(t *testing.T) {
	if NewLogger("debug", "json") == nil {
		t.Fatal("NewLogger returned nil")
	}
	if NewLogger("bogus", "text") == nil {
		t.Fatal("NewLogger with unknown level returned nil")
	}
}
