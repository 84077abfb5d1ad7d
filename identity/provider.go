package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	credsvc "github.com/codekids/credsvc"
	"github.com/codekids/credsvc/password"
)

// ErrBadCredentials is an exported constant or variable used by the credential service.
var ErrBadCredentials = errors.New("bad credentials")

type identityDoc struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName,omitempty"`
	PasswordHash string `json:"passwordHash"`
	Disabled     bool   `json:"disabled,omitempty"`
}

// RedisProvider is the Redis-backed [credsvc.IdentityProvider]. Passwords are
// stored as argon2id PHC hashes; tokens are verified by a [TokenManager].
type RedisProvider struct {
	redis  redis.UniversalClient
	prefix string
	hasher *password.Hasher
	tokens *TokenManager
}

// NewRedisProvider creates a [RedisProvider]. prefix namespaces all keys;
// tokens may be nil when the deployment never calls VerifyToken or
// Authenticate through this provider.
func NewRedisProvider(redisClient redis.UniversalClient, prefix string, tokens *TokenManager) *RedisProvider {
	if prefix == "" {
		prefix = "ck"
	}
	return &RedisProvider{
		redis:  redisClient,
		prefix: prefix,
		hasher: password.NewHasher(),
		tokens: tokens,
	}
}

func (p *RedisProvider) key(uid string) string {
	return p.prefix + ":identity:" + uid
}

func (p *RedisProvider) emailKey(email string) string {
	return p.prefix + ":identityEmail:" + strings.ToLower(strings.TrimSpace(email))
}

// CreateIdentity describes the createidentity operation and its observable behavior.
//
// CreateIdentity may return an error when input validation, dependency calls, or security checks fail.
// CreateIdentity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *RedisProvider) CreateIdentity(ctx context.Context, input credsvc.CreateIdentityInput) (credsvc.IdentityRecord, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return credsvc.IdentityRecord{}, credsvc.ErrEmailRequired
	}

	hash, err := p.hasher.Hash(input.Password)
	if err != nil {
		return credsvc.IdentityRecord{}, err
	}

	doc := identityDoc{
		UID:          uuid.New().String(),
		Email:        email,
		DisplayName:  input.DisplayName,
		PasswordHash: hash,
		Disabled:     input.Disabled,
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return credsvc.IdentityRecord{}, err
	}

	// Email index first: it is the uniqueness gate. The uid key is fresh and
	// cannot collide.
	ok, err := p.redis.SetNX(ctx, p.emailKey(email), doc.UID, 0).Result()
	if err != nil {
		return credsvc.IdentityRecord{}, fmt.Errorf("%w: %v", credsvc.ErrIdentityUnavailable, err)
	}
	if !ok {
		return credsvc.IdentityRecord{}, credsvc.ErrIdentityExists
	}
	if err := p.redis.Set(ctx, p.key(doc.UID), encoded, 0).Err(); err != nil {
		_ = p.redis.Del(ctx, p.emailKey(email)).Err()
		return credsvc.IdentityRecord{}, fmt.Errorf("%w: %v", credsvc.ErrIdentityUnavailable, err)
	}

	return record(doc), nil
}

// UpdatePassword describes the updatepassword operation and its observable behavior.
//
// UpdatePassword may return an error when input validation, dependency calls, or security checks fail.
// UpdatePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *RedisProvider) UpdatePassword(ctx context.Context, uid, newPassword string) error {
	return p.update(ctx, uid, func(doc *identityDoc) error {
		hash, err := p.hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		doc.PasswordHash = hash
		return nil
	})
}

// SetDisabled describes the setdisabled operation and its observable behavior.
//
// SetDisabled may return an error when input validation, dependency calls, or security checks fail.
// SetDisabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *RedisProvider) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	return p.update(ctx, uid, func(doc *identityDoc) error {
		doc.Disabled = disabled
		return nil
	})
}

// GetByEmail describes the getbyemail operation and its observable behavior.
//
// GetByEmail may return an error when input validation, dependency calls, or security checks fail.
// GetByEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *RedisProvider) GetByEmail(ctx context.Context, email string) (credsvc.IdentityRecord, error) {
	uid, err := p.redis.Get(ctx, p.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return credsvc.IdentityRecord{}, credsvc.ErrIdentityNotFound
		}
		return credsvc.IdentityRecord{}, fmt.Errorf("%w: %v", credsvc.ErrIdentityUnavailable, err)
	}
	return p.GetByUID(ctx, uid)
}

// GetByUID describes the getbyuid operation and its observable behavior.
//
// GetByUID may return an error when input validation, dependency calls, or security checks fail.
// GetByUID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *RedisProvider) GetByUID(ctx context.Context, uid string) (credsvc.IdentityRecord, error) {
	doc, err := p.load(ctx, uid)
	if err != nil {
		return credsvc.IdentityRecord{}, err
	}
	return record(*doc), nil
}

// VerifyToken describes the verifytoken operation and its observable behavior.
//
// VerifyToken may return an error when input validation, dependency calls, or security checks fail.
// VerifyToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *RedisProvider) VerifyToken(ctx context.Context, token string) (credsvc.TokenClaims, error) {
	if p.tokens == nil {
		return credsvc.TokenClaims{}, errors.New("token manager not configured")
	}

	uid, email, admin, err := p.tokens.Verify(token)
	if err != nil {
		return credsvc.TokenClaims{}, err
	}

	// A disabled identity's tokens stop working immediately, not at expiry.
	doc, err := p.load(ctx, uid)
	if err != nil {
		return credsvc.TokenClaims{}, err
	}
	if doc.Disabled {
		return credsvc.TokenClaims{}, credsvc.ErrUnauthorized
	}

	return credsvc.TokenClaims{UID: uid, Email: email, Admin: admin}, nil
}

// Authenticate checks an email and password pair and mints a session token
// for interactive sign-in. admin stamps the admin claim; the caller decides
// it from the profile document.
func (p *RedisProvider) Authenticate(ctx context.Context, email, pw string, admin bool) (string, error) {
	if p.tokens == nil {
		return "", errors.New("token manager not configured")
	}

	rec, err := p.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, credsvc.ErrIdentityNotFound) {
			return "", ErrBadCredentials
		}
		return "", err
	}
	if rec.Disabled {
		return "", ErrBadCredentials
	}

	doc, err := p.load(ctx, rec.UID)
	if err != nil {
		return "", err
	}

	ok, err := p.hasher.Verify(pw, doc.PasswordHash)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrBadCredentials
	}

	return p.tokens.Mint(rec.UID, rec.Email, admin)
}

func (p *RedisProvider) load(ctx context.Context, uid string) (*identityDoc, error) {
	data, err := p.redis.Get(ctx, p.key(uid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, credsvc.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("%w: %v", credsvc.ErrIdentityUnavailable, err)
	}

	var doc identityDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (p *RedisProvider) update(ctx context.Context, uid string, mutate func(*identityDoc) error) error {
	doc, err := p.load(ctx, uid)
	if err != nil {
		return err
	}
	if err := mutate(doc); err != nil {
		return err
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := p.redis.Set(ctx, p.key(uid), encoded, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", credsvc.ErrIdentityUnavailable, err)
	}
	return nil
}

func record(doc identityDoc) credsvc.IdentityRecord {
	return credsvc.IdentityRecord{
		UID:         doc.UID,
		Email:       doc.Email,
		DisplayName: doc.DisplayName,
		Disabled:    doc.Disabled,
	}
}
