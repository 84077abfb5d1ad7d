package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRedisUnavailable = errors.New("limiter redis unavailable")
)

// RequestLimiter enforces per-key fixed-window budgets using Redis counters.
// Keys are opaque to the limiter; callers namespace them ("ip:<addr>",
// "email:<addr>").
type RequestLimiter struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRequestLimiter creates a [RequestLimiter] backed by the given Redis
// client. prefix namespaces all limiter keys.
func NewRequestLimiter(redisClient redis.UniversalClient, prefix string) *RequestLimiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &RequestLimiter{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (l *RequestLimiter) key(key string) string {
	return l.prefix + ":" + key
}

// Allow increments the counter for key and reports whether the request is
// within budget. The counter is persisted unconditionally, including on the
// request that exceeds max.
func (l *RequestLimiter) Allow(ctx context.Context, key string, max int, window time.Duration) (bool, error) {
	count, err := l.redis.Incr(ctx, l.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(key), window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count <= int64(max), nil
}

// Count returns the current counter for key without incrementing. Missing
// keys return zero.
func (l *RequestLimiter) Count(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Get(ctx, l.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}
