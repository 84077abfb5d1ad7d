package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StatusPending  = "PENDING"
	StatusResolved = "RESOLVED"
)

var (
	ErrRequestNotFound = errors.New("reset request not found")
)

// RequestRecord is one durable password-reset request. ResolvedUserID stays
// empty for unknown target accounts by design: the record stream must not
// reveal account existence either.
type RequestRecord struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	UserID             string     `json:"userId,omitempty"`
	UserName           string     `json:"userName,omitempty"`
	RequesterIP        string     `json:"requestIp,omitempty"`
	Status             string     `json:"status"`
	RequestedAt        time.Time  `json:"requestedAt"`
	ResolvedAt         *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy         string     `json:"resolvedBy,omitempty"`
	IssuedTempPassword string     `json:"tempPassword,omitempty"`
}

// Requests stores one reset-request collection. The service instantiates it
// twice, once per parallel workflow (adminNotifications and
// passwordResetRequests), with identical semantics.
type Requests struct {
	redis      redis.UniversalClient
	prefix     string
	collection string
}

func NewRequests(redisClient redis.UniversalClient, prefix, collection string) *Requests {
	if prefix == "" {
		prefix = "ck"
	}
	return &Requests{
		redis:      redisClient,
		prefix:     prefix,
		collection: collection,
	}
}

// Collection returns the collection name this store writes to.
func (s *Requests) Collection() string {
	return s.collection
}

func (s *Requests) key(id string) string {
	return s.prefix + ":" + s.collection + ":" + id
}

func (s *Requests) pendingKey() string {
	return s.prefix + ":" + s.collection + ":pending"
}

// Save persists a new request record and indexes it as pending.
func (s *Requests) Save(ctx context.Context, rec *RequestRecord) error {
	encoded, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.key(rec.ID), encoded, 0)
	if rec.Status == StatusPending {
		pipe.SAdd(ctx, s.pendingKey(), rec.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get loads a request by id.
func (s *Requests) Get(ctx context.Context, id string) (*RequestRecord, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var rec RequestRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Resolve transitions a request from PENDING to RESOLVED exactly once. When
// the record is already resolved it is returned unchanged with
// alreadyResolved true and no mutation; the transition itself runs under
// WATCH so two racing resolvers commit at most one stamp.
func (s *Requests) Resolve(ctx context.Context, id, byUID string, at time.Time, tempPassword string) (*RequestRecord, bool, error) {
	const maxRetries = 4
	key := s.key(id)

	for i := 0; i < maxRetries; i++ {
		var (
			resolved *RequestRecord
			already  bool
		)

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			var rec RequestRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}

			if rec.Status == StatusResolved {
				resolved = &rec
				already = true
				return nil
			}

			rec.Status = StatusResolved
			resolvedAt := at
			rec.ResolvedAt = &resolvedAt
			rec.ResolvedBy = byUID
			rec.IssuedTempPassword = tempPassword

			encoded, err := json.Marshal(&rec)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				pipe.SRem(ctx, s.pendingKey(), id)
				return nil
			})
			if err != nil {
				return err
			}

			resolved = &rec
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, false, ErrRequestNotFound
			}
			return nil, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		return resolved, already, nil
	}

	return nil, false, fmt.Errorf("%w: resolve contention on %s", ErrRedisUnavailable, id)
}

// ListPending returns up to limit pending requests, newest unordered.
func (s *Requests) ListPending(ctx context.Context, limit int) ([]RequestRecord, error) {
	ids, err := s.redis.SMembers(ctx, s.pendingKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]RequestRecord, 0, len(ids))
	for _, id := range ids {
		if limit > 0 && len(out) >= limit {
			break
		}
		rec, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrRequestNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}
