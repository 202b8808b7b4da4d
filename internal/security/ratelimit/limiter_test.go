package ratelimit

import (
	"testing"
	"time"
)

func TestAllowSlidingWindow(t *testing.T) {
	l := NewLimiter(2, time.Minute)
	defer l.Stop()
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	if !l.Allow("10.0.0.1") || !l.Allow("10.0.0.1") {
		t.Fatalf("first two requests should pass")
	}
	if l.Allow("10.0.0.1") {
		t.Fatalf("third request inside the window should be rejected")
	}
	if !l.Allow("10.0.0.2") {
		t.Fatalf("other clients have their own bucket")
	}

	clock = clock.Add(61 * time.Second)
	if !l.Allow("10.0.0.1") {
		t.Fatalf("window should have slid")
	}
}

func TestAllowStrictIsSeparate(t *testing.T) {
	l := NewLimiter(100, time.Minute)
	defer l.Stop()

	if !l.AllowStrict("ip", 1, time.Minute) {
		t.Fatalf("first strict request should pass")
	}
	if l.AllowStrict("ip", 1, time.Minute) {
		t.Fatalf("second strict request should be rejected")
	}
	if !l.Allow("ip") {
		t.Fatalf("strict bucket must not consume the normal bucket")
	}
}
