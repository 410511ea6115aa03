package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *goredis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisCooldownLimiterWindow(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	l, err := NewRedisCooldownLimiter(client, 30*time.Second)
	if err != nil {
		t.Fatalf("NewRedisCooldownLimiter() error = %v", err)
	}

	now := time.Unix(1_700_000_000, 0)
	allowed, err := l.Allow(context.Background(), "delivery_completed:D-9", now)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("first fire must be allowed")
	}

	allowed, err = l.Allow(context.Background(), "delivery_completed:D-9", now.Add(time.Second))
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Fatal("fire inside the window must be suppressed")
	}

	// TTL expiry reopens the window.
	mr.FastForward(31 * time.Second)
	allowed, err = l.Allow(context.Background(), "delivery_completed:D-9", now.Add(31*time.Second))
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Fatal("fire after TTL expiry must be allowed")
	}
}

func TestRedisCooldownLimiterIndependentTags(t *testing.T) {
	t.Parallel()

	client := newTestRedis(t)
	l, err := NewRedisCooldownLimiter(client, 30*time.Second)
	if err != nil {
		t.Fatalf("NewRedisCooldownLimiter() error = %v", err)
	}

	now := time.Now()
	if allowed, _ := l.Allow(context.Background(), "a", now); !allowed {
		t.Fatal("tag a should be allowed")
	}
	if allowed, _ := l.Allow(context.Background(), "b", now); !allowed {
		t.Fatal("tag b is independent of tag a")
	}
}

func TestRedisCooldownLimiterRequiresClient(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisCooldownLimiter(nil, time.Second); err == nil {
		t.Fatal("expected error for nil client")
	}
}
