package throttle

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(3, 15*time.Minute)
	l.now = func() time.Time { return now }

	blocked := func() bool {
		t.Helper()
		b, err := l.Blocked(ctx, "ana@x.com")
		if err != nil {
			t.Fatalf("Blocked() error = %v", err)
		}
		return b
	}

	for i := 0; i < 3; i++ {
		if blocked() {
			t.Fatalf("blocked after %d failures", i)
		}
		_ = l.Fail(ctx, "ana@x.com")
	}
	if !blocked() {
		t.Fatal("not blocked after 3 failures")
	}
	if b, _ := l.Blocked(ctx, "other@x.com"); b {
		t.Error("other key blocked")
	}

	now = now.Add(15 * time.Minute)
	if blocked() {
		t.Error("still blocked after lockout")
	}

	_ = l.Fail(ctx, "ana@x.com")
	_ = l.Fail(ctx, "ana@x.com")
	_ = l.Reset(ctx, "ana@x.com")
	_ = l.Fail(ctx, "ana@x.com")
	_ = l.Fail(ctx, "ana@x.com")
	if blocked() {
		t.Error("Reset did not clear the counter")
	}
}

func TestMemoryLimiterDisabled(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(0, time.Minute)
	for i := 0; i < 10; i++ {
		_ = l.Fail(ctx, "k")
	}
	if b, _ := l.Blocked(ctx, "k"); b {
		t.Error("disabled limiter blocked")
	}
}
