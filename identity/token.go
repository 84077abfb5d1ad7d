package identity

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod defines a public type used by credsvc APIs.
//
// SigningMethod instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigningMethod string

const (
	// MethodHS256 is an exported constant or variable used by the credential service.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 is an exported constant or variable used by the credential service.
	MethodEd25519 SigningMethod = "ed25519"
)

// TokenConfig defines a public type used by credsvc APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	Secret        []byte
	PrivateKey    ed25519.PrivateKey
	PublicKey     ed25519.PublicKey
	Issuer        string
	Leeway        time.Duration
}

// tokenClaims is the wire shape of a session token.
type tokenClaims struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Admin bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager mints and verifies session tokens. Safe for concurrent use.
type TokenManager struct {
	config TokenConfig
}

// NewTokenManager describes the newtokenmanager operation and its observable behavior.
//
// NewTokenManager may return an error when input validation, dependency calls, or security checks fail.
// NewTokenManager does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Secret) == 0 {
			return nil, errors.New("hs256 requires a secret")
		}
	case MethodEd25519:
		if len(cfg.PublicKey) != ed25519.PublicKeySize {
			return nil, errors.New("ed25519 requires a public key")
		}
		if len(cfg.PrivateKey) != 0 && len(cfg.PrivateKey) != ed25519.PrivateKeySize {
			return nil, errors.New("invalid ed25519 private key")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &TokenManager{config: cfg}, nil
}

// Mint describes the mint operation and its observable behavior.
//
// Mint may return an error when input validation, dependency calls, or security checks fail.
// Mint does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *TokenManager) Mint(uid, email string, admin bool) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		UID:   uid,
		Email: email,
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(m.method(), claims)
	return token.SignedString(m.signKey())
}

// Verify describes the verify operation and its observable behavior.
//
// Verify may return an error when input validation, dependency calls, or security checks fail.
// Verify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *TokenManager) Verify(tokenStr string) (uid, email string, admin bool, err error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.verifyKey(), nil
	})
	if err != nil {
		return "", "", false, err
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return "", "", false, jwt.ErrTokenInvalidClaims
	}

	uid = claims.UID
	if uid == "" {
		uid = claims.Subject
	}
	if uid == "" {
		return "", "", false, jwt.ErrTokenInvalidClaims
	}

	return uid, claims.Email, claims.Admin, nil
}

func (m *TokenManager) method() jwt.SigningMethod {
	if m.config.SigningMethod == MethodEd25519 {
		return jwt.SigningMethodEdDSA
	}
	return jwt.SigningMethodHS256
}

func (m *TokenManager) signKey() interface{} {
	if m.config.SigningMethod == MethodEd25519 {
		return m.config.PrivateKey
	}
	return m.config.Secret
}

func (m *TokenManager) verifyKey() interface{} {
	if m.config.SigningMethod == MethodEd25519 {
		return m.config.PublicKey
	}
	return m.config.Secret
}
