package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, mr *miniredis.Miniredis, limit int, now func() time.Time) *FixedWindowLimiter {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := NewFixedWindowLimiter(client, Options{Prefix: "test:ratelimit", Limit: limit, Window: time.Minute, Now: now})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return limiter
}

func TestFixedWindowLimiterBlocksOverLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	now := time.Date(2026, 10, 17, 9, 0, 15, 0, time.UTC)
	limiter := newTestLimiter(t, mr, 2, func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := limiter.Allow(ctx, "POST /api/patients|203.0.113.5")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should pass", i)
		}
	}
	d, err := limiter.Allow(ctx, "POST /api/patients|203.0.113.5")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed || d.Remaining != 0 {
		t.Fatalf("third request should be blocked, got %+v", d)
	}
	if d.RetryAfter != 45*time.Second {
		t.Fatalf("retry after = %v, want 45s", d.RetryAfter)
	}

	other, err := limiter.Allow(ctx, "POST /api/patients|198.51.100.7")
	if err != nil || !other.Allowed {
		t.Fatalf("other client should have its own quota, got %+v, %v", other, err)
	}
}

func TestFixedWindowLimiterResetsNextWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	now := time.Date(2026, 10, 17, 9, 0, 59, 0, time.UTC)
	limiter := newTestLimiter(t, mr, 1, func() time.Time { return now })
	ctx := context.Background()

	if d, _ := limiter.Allow(ctx, "k"); !d.Allowed {
		t.Fatal("first request should pass")
	}
	if d, _ := limiter.Allow(ctx, "k"); d.Allowed {
		t.Fatal("second request in the same window should be blocked")
	}
	now = now.Add(2 * time.Second)
	if d, _ := limiter.Allow(ctx, "k"); !d.Allowed {
		t.Fatal("request in the next window should pass")
	}
}

func TestFixedWindowLimiterFailsClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter := newTestLimiter(t, mr, 1, nil)
	mr.Close()
	d, err := limiter.Allow(context.Background(), "k")
	if err == nil {
		t.Fatal("expected redis error")
	}
	if d.Allowed {
		t.Fatal("limiter should deny on redis errors")
	}
}

func TestNewFixedWindowLimiterValidates(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	if _, err := NewFixedWindowLimiter(nil, Options{Limit: 1, Window: time.Second}); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewFixedWindowLimiter(client, Options{Limit: 0, Window: time.Second}); err == nil {
		t.Fatal("expected error for zero limit")
	}
	if _, err := NewFixedWindowLimiter(client, Options{Limit: 1}); err == nil {
		t.Fatal("expected error for zero window")
	}
}
