package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig(attempts int) *Config {
	return &Config{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, BackoffMultiplier: 2}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(3), quietLogger(), "flaky", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Fatalf("got %q after %d calls", got, calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	base := errors.New("bad address")
	_, err := Do(context.Background(), fastConfig(5), quietLogger(), "send", func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(base)
	})
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
	if !errors.Is(err, base) || !IsPermanent(err) {
		t.Fatalf("expected permanent wrapped error, got %v", err)
	}
}

func TestDoWrapsLastError(t *testing.T) {
	base := errors.New("down")
	_, err := Do(context.Background(), fastConfig(2), quietLogger(), "ping", func(ctx context.Context) (int, error) {
		return 0, base
	})
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped base error, got %v", err)
	}
}

func TestBackoffCapsAtMax(t *testing.T) {
	cfg := &Config{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, BackoffMultiplier: 2}
	if got := Backoff(0, cfg); got != time.Second {
		t.Fatalf("first backoff = %v", got)
	}
	if got := Backoff(2, cfg); got != 4*time.Second {
		t.Fatalf("third backoff = %v", got)
	}
	if got := Backoff(10, cfg); got != 5*time.Second {
		t.Fatalf("capped backoff = %v", got)
	}
}
