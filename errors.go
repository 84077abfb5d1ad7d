package credsvc

import (
	"errors"

	"github.com/codekids/credsvc/internal/stores"
)

var (
	// ErrUnauthorized is an exported constant or variable used by the credential service.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrEmailRequired is an exported constant or variable used by the credential service.
	ErrEmailRequired = errors.New("email required")
	// ErrMissingField is an exported constant or variable used by the credential service.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidParams is an exported constant or variable used by the credential service.
	ErrInvalidParams = errors.New("invalid parameters")
	// ErrRequestNotFound is an exported constant or variable used by the credential service.
	ErrRequestNotFound = stores.ErrRequestNotFound
	// ErrPasswordPolicy is an exported constant or variable used by the credential service.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrEmailCollision is an exported constant or variable used by the credential service.
	ErrEmailCollision = errors.New("generated email collision budget exhausted")
	// ErrIdentityNotFound is an exported constant or variable used by the credential service.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrIdentityExists is an exported constant or variable used by the credential service.
	ErrIdentityExists = errors.New("identity already exists")
	// ErrIdentityUnavailable is an exported constant or variable used by the credential service.
	ErrIdentityUnavailable = errors.New("identity backend unavailable")
	// ErrProfileNotFound is an exported constant or variable used by the credential service.
	ErrProfileNotFound = stores.ErrProfileNotFound
	// ErrProfileWriteFailed is an exported constant or variable used by the credential service.
	ErrProfileWriteFailed = errors.New("profile write failed")
	// ErrStoreUnavailable is an exported constant or variable used by the credential service.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrRateLimited is an exported constant or variable used by the credential service.
	ErrRateLimited = errors.New("rate limited")
	// ErrEngineNotReady is an exported constant or variable used by the credential service.
	ErrEngineNotReady = errors.New("engine not initialized")
)
