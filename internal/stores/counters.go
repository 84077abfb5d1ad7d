package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Counters advances the per-role-letter provisioning counters. INCR is a
// single atomic read-modify-write, so the returned sequence is strictly
// increasing across concurrent callers with no duplicates.
type Counters struct {
	redis  redis.UniversalClient
	prefix string
}

func NewCounters(redisClient redis.UniversalClient, prefix string) *Counters {
	if prefix == "" {
		prefix = "ck"
	}
	return &Counters{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Counters) key(letter string) string {
	// Document id carried over from the original counters collection.
	return s.prefix + ":counter:users-role-" + letter
}

// Next advances the counter for a role letter and returns the new value.
func (s *Counters) Next(ctx context.Context, letter string) (int64, error) {
	n, err := s.redis.Incr(ctx, s.key(letter)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

// Current returns the counter value without advancing it. Missing counters
// read as zero.
func (s *Counters) Current(ctx context.Context, letter string) (int64, error) {
	n, err := s.redis.Get(ctx, s.key(letter)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}
