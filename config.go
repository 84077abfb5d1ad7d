package credsvc

import (
	"errors"
	"time"
)

// Config defines a public type used by credsvc APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	EmailDomain string
	RateLimit   RateLimitConfig
	Provision   ProvisionConfig
	Reset       ResetConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
	Storage     StorageConfig
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RatePolicy is one fixed-window budget: at most Max requests per Window for
// a given key.
type RatePolicy struct {
	Max    int
	Window time.Duration
}

// RateLimitConfig defines a public type used by credsvc APIs.
//
// Both historical intake variants are carried as named policies rather than
// hardcoded values: the admin-mediated intake throttles per IP and per
// normalized email independently; the self-service intake throttles per IP.
type RateLimitConfig struct {
	AdminIntakeIP    RatePolicy
	AdminIntakeEmail RatePolicy
	SelfIntakeIP     RatePolicy
}

/*
====================================
PROVISION CONFIG
====================================
*/

// ProvisionConfig defines a public type used by credsvc APIs.
//
// EmailProbeAttempts bounds the collision-avoidance loop over candidate
// generated emails. The privileged endpoint historically used 5 and the
// offline tool 50; both remain configurable.
type ProvisionConfig struct {
	EmailProbeAttempts         int
	PasswordUniquenessAttempts int
	PasswordLength             int
}

/*
====================================
RESET CONFIG
====================================
*/

// ResetConfig defines a public type used by credsvc APIs.
//
// Validity is the forced-change window stamped on the profile when an admin
// resolves a reset. AdminCollection and SelfCollection name the two parallel
// request collections.
type ResetConfig struct {
	Validity        time.Duration
	AdminCollection string
	SelfCollection  string
}

/*
====================================
AUDIT / METRICS / STORAGE CONFIG
====================================
*/

// AuditConfig defines a public type used by credsvc APIs.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by credsvc APIs.
type MetricsConfig struct {
	Enabled bool
}

// StorageConfig defines a public type used by credsvc APIs.
type StorageConfig struct {
	RedisPrefix string
}

// DefaultConfig returns the production defaults: admin-mediated intake at 5
// requests per hour per IP and per email, self-service intake at 3 requests
// per 15 minutes per IP, 12-character temporary passwords, a 5-probe email
// collision budget, and a 90-day forced-change validity window.
func DefaultConfig() Config {
	return Config{
		EmailDomain: "codekids.com",
		RateLimit: RateLimitConfig{
			AdminIntakeIP:    RatePolicy{Max: 5, Window: time.Hour},
			AdminIntakeEmail: RatePolicy{Max: 5, Window: time.Hour},
			SelfIntakeIP:     RatePolicy{Max: 3, Window: 15 * time.Minute},
		},
		Provision: ProvisionConfig{
			EmailProbeAttempts:         5,
			PasswordUniquenessAttempts: 3,
			PasswordLength:             12,
		},
		Reset: ResetConfig{
			Validity:        90 * 24 * time.Hour,
			AdminCollection: "adminNotifications",
			SelfCollection:  "passwordResetRequests",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Storage: StorageConfig{
			RedisPrefix: "ck",
		},
	}
}

func defaultConfig() Config {
	return DefaultConfig()
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if c.EmailDomain == "" {
		return errors.New("EmailDomain required")
	}
	for _, p := range []RatePolicy{c.RateLimit.AdminIntakeIP, c.RateLimit.AdminIntakeEmail, c.RateLimit.SelfIntakeIP} {
		if p.Max <= 0 {
			return errors.New("rate policy Max must be positive")
		}
		if p.Window <= 0 {
			return errors.New("rate policy Window must be positive")
		}
	}
	if c.Provision.EmailProbeAttempts <= 0 {
		return errors.New("EmailProbeAttempts must be positive")
	}
	if c.Provision.PasswordUniquenessAttempts <= 0 {
		return errors.New("PasswordUniquenessAttempts must be positive")
	}
	if c.Provision.PasswordLength < 12 {
		return errors.New("PasswordLength must be at least 12")
	}
	if c.Reset.Validity <= 0 {
		return errors.New("Reset Validity must be positive")
	}
	if c.Reset.AdminCollection == "" || c.Reset.SelfCollection == "" {
		return errors.New("reset collections required")
	}
	if c.Reset.AdminCollection == c.Reset.SelfCollection {
		return errors.New("reset collections must differ")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	// No reference-typed fields today; value copy is a deep copy. Kept as a
	// function so additions to Config go through one place.
	return cfg
}
