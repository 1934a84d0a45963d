package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), DefaultRetryConfig(), func(context.Context, int) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil || result != "ok" || calls != 1 {
		t.Fatalf("got %q, %v after %d calls", result, err, calls)
	}
}

func TestRetry_SucceedsAfterRetry(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Exponential: true}
	var attempts []int
	result, err := Retry(context.Background(), cfg, func(_ context.Context, attempt int) (string, error) {
		attempts = append(attempts, attempt)
		if attempt < 3 {
			return "", errors.New("temporary")
		}
		return "ok", nil
	})
	if err != nil || result != "ok" {
		t.Fatalf("got %q, %v", result, err)
	}
	if len(attempts) != 3 || attempts[2] != 3 {
		t.Errorf("expected attempts [1 2 3], got %v", attempts)
	}
}

func TestRetry_ExceedsMaxAttempts(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 4, BaseDelay: time.Millisecond}
	calls := 0
	persistent := errors.New("persistent")
	_, err := Retry(context.Background(), cfg, func(context.Context, int) (int, error) {
		calls++
		return 0, persistent
	})
	if !errors.Is(err, persistent) {
		t.Errorf("expected last error, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
}

func TestRetry_RetryIfStopsEarly(t *testing.T) {
	fatal := errors.New("fatal")
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond, RetryIf: func(err error) bool { return !errors.Is(err, fatal) }}
	calls := 0
	_, err := Retry(context.Background(), cfg, func(context.Context, int) (int, error) {
		calls++
		return 0, fatal
	})
	if !errors.Is(err, fatal) || calls != 1 {
		t.Errorf("expected single call with fatal error, got %d calls, %v", calls, err)
	}
}

func TestRetry_RespectsContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Hour}
	cfg.OnRetry = func(int, error, time.Duration) { cancel() }

	start := time.Now()
	_, err := Retry(ctx, cfg, func(context.Context, int) (int, error) {
		return 0, errors.New("again")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > time.Second {
		t.Error("retry should stop sleeping once ctx is cancelled")
	}
}

func TestRetryConfig_Backoff(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RetryConfig
		attempt int
		want    time.Duration
	}{
		{"fixed", RetryConfig{BaseDelay: 100 * time.Millisecond}, 3, 100 * time.Millisecond},
		{"exponential first", RetryConfig{BaseDelay: 100 * time.Millisecond, Exponential: true}, 1, 100 * time.Millisecond},
		{"exponential third", RetryConfig{BaseDelay: 100 * time.Millisecond, Exponential: true}, 3, 400 * time.Millisecond},
		{"capped", RetryConfig{BaseDelay: time.Second, MaxDelay: 3 * time.Second, Exponential: true}, 5, 3 * time.Second},
		{"zero attempt treated as first", RetryConfig{BaseDelay: time.Second, Exponential: true}, 0, time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.Backoff(tc.attempt); got != tc.want {
				t.Errorf("Backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
			}
		})
	}
}

func TestRetryConfig_BackoffJitterBounds(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, Jitter: 0.5}
	for i := 0; i < 100; i++ {
		d := cfg.Backoff(1)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("jittered delay %v out of bounds", d)
		}
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
