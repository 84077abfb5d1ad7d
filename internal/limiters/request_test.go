package limiters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestAllowWithinBudget(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	limiter := NewRequestLimiter(rdb, "rl")
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		ok, err := limiter.Allow(ctx, "ip:10.0.0.1", 5, time.Hour)
		if err != nil {
			t.Fatalf("Allow %d failed: %v", i, err)
		}
		if !ok {
			t.Fatalf("request %d of 5 unexpectedly limited", i)
		}
	}

	ok, err := limiter.Allow(ctx, "ip:10.0.0.1", 5, time.Hour)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if ok {
		t.Fatal("request 6 of 5 should be limited")
	}
}

func TestWindowExpiryResetsBudget(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	limiter := NewRequestLimiter(rdb, "rl")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := limiter.Allow(ctx, "k", 3, 15*time.Minute); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
	}
	if ok, _ := limiter.Allow(ctx, "k", 3, 15*time.Minute); ok {
		t.Fatal("expected limit hit before window expiry")
	}

	mr.FastForward(15*time.Minute + time.Second)

	ok, err := limiter.Allow(ctx, "k", 3, 15*time.Minute)
	if err != nil {
		t.Fatalf("Allow after expiry failed: %v", err)
	}
	if !ok {
		t.Fatal("expected fresh window after expiry")
	}

	count, err := limiter.Count(ctx, "k")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected fresh counter at 1, got %d", count)
	}
}

func TestOverLimitRequestsStillCounted(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	limiter := NewRequestLimiter(rdb, "rl")
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if _, err := limiter.Allow(ctx, "k", 3, time.Hour); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
	}

	count, err := limiter.Count(ctx, "k")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 7 {
		t.Fatalf("expected over-limit requests persisted, got %d", count)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	limiter := NewRequestLimiter(rdb, "rl")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := limiter.Allow(ctx, "ip:a", 3, time.Hour); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
	}
	if ok, _ := limiter.Allow(ctx, "ip:a", 3, time.Hour); ok {
		t.Fatal("expected ip:a exhausted")
	}

	ok, err := limiter.Allow(ctx, "ip:b", 3, time.Hour)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !ok {
		t.Fatal("expected ip:b unaffected by ip:a budget")
	}
}

func TestAllowFailsClosedOnBackendError(t *testing.T) {
	mr, rdb := newTestRedis(t)

	limiter := NewRequestLimiter(rdb, "rl")
	mr.Close()

	ok, err := limiter.Allow(context.Background(), "k", 3, time.Hour)
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if ok {
		t.Fatal("expected deny on backend failure")
	}
}
