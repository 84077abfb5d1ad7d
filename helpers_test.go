package credsvc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/codekids/credsvc/internal/limiters"
	"github.com/codekids/credsvc/internal/stores"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func newTestEngine(t *testing.T, rdb *redis.Client, provider IdentityProvider, cfg Config) *Engine {
	t.Helper()

	return &Engine{
		config:        cfg,
		identity:      provider,
		profiles:      stores.NewProfiles(rdb, cfg.Storage.RedisPrefix),
		adminRequests: stores.NewRequests(rdb, cfg.Storage.RedisPrefix, cfg.Reset.AdminCollection),
		selfRequests:  stores.NewRequests(rdb, cfg.Storage.RedisPrefix, cfg.Reset.SelfCollection),
		counters:      stores.NewCounters(rdb, cfg.Storage.RedisPrefix),
		limiter:       limiters.NewRequestLimiter(rdb, cfg.Storage.RedisPrefix+":rl"),
		metrics:       NewMetrics(cfg.Metrics),
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Audit.Enabled = false
	return cfg
}

type mockIdentityProvider struct {
	mu        sync.Mutex
	users     map[string]IdentityRecord
	passwords map[string]string
	byEmail   map[string]string
	tokens    map[string]TokenClaims

	createErr error
	updateErr error
	lookupErr error

	nextUID int
}

func newMockIdentityProvider() *mockIdentityProvider {
	return &mockIdentityProvider{
		users:     make(map[string]IdentityRecord),
		passwords: make(map[string]string),
		byEmail:   make(map[string]string),
		tokens:    make(map[string]TokenClaims),
	}
}

func (m *mockIdentityProvider) put(rec IdentityRecord, pw string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[rec.UID] = rec
	m.byEmail[strings.ToLower(rec.Email)] = rec.UID
	m.passwords[rec.UID] = pw
}

func (m *mockIdentityProvider) CreateIdentity(_ context.Context, input CreateIdentityInput) (IdentityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return IdentityRecord{}, m.createErr
	}
	email := strings.ToLower(input.Email)
	if _, exists := m.byEmail[email]; exists {
		return IdentityRecord{}, ErrIdentityExists
	}

	m.nextUID++
	rec := IdentityRecord{
		UID:         fmt.Sprintf("uid-%d", m.nextUID),
		Email:       email,
		DisplayName: input.DisplayName,
		Disabled:    input.Disabled,
	}
	m.users[rec.UID] = rec
	m.byEmail[email] = rec.UID
	m.passwords[rec.UID] = input.Password
	return rec, nil
}

func (m *mockIdentityProvider) UpdatePassword(_ context.Context, uid, newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.users[uid]; !ok {
		return ErrIdentityNotFound
	}
	m.passwords[uid] = newPassword
	return nil
}

func (m *mockIdentityProvider) SetDisabled(_ context.Context, uid string, disabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.users[uid]
	if !ok {
		return ErrIdentityNotFound
	}
	rec.Disabled = disabled
	m.users[uid] = rec
	return nil
}

func (m *mockIdentityProvider) GetByEmail(_ context.Context, email string) (IdentityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lookupErr != nil {
		return IdentityRecord{}, m.lookupErr
	}
	uid, ok := m.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return IdentityRecord{}, ErrIdentityNotFound
	}
	return m.users[uid], nil
}

func (m *mockIdentityProvider) GetByUID(_ context.Context, uid string) (IdentityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.users[uid]
	if !ok {
		return IdentityRecord{}, ErrIdentityNotFound
	}
	return rec, nil
}

func (m *mockIdentityProvider) VerifyToken(_ context.Context, token string) (TokenClaims, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	claims, ok := m.tokens[token]
	if !ok {
		return TokenClaims{}, ErrUnauthorized
	}
	return claims, nil
}

func (m *mockIdentityProvider) password(uid string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.passwords[uid]
}

func (m *mockIdentityProvider) record(uid string) (IdentityRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.users[uid]
	return rec, ok
}

func seedProfile(t *testing.T, e *Engine, rec *Profile) {
	t.Helper()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if err := e.profiles.Create(context.Background(), rec); err != nil {
		t.Fatalf("seed profile failed: %v", err)
	}
}
