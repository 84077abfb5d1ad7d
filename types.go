package credsvc

import (
	"context"
	"io"
	"strings"
	"time"

	internalaudit "github.com/codekids/credsvc/internal/audit"
	internalmetrics "github.com/codekids/credsvc/internal/metrics"
	"github.com/codekids/credsvc/internal/stores"
)

// Role is the canonical application role of a profile. It is serialized at
// the storage boundary under BOTH the current `role` spelling (title case)
// and the legacy `rol` spelling (lower case); see internal/stores.
type Role string

const (
	// RoleAdmin is an exported constant or variable used by the credential service.
	RoleAdmin Role = "Admin"
	// RoleProfesor is an exported constant or variable used by the credential service.
	RoleProfesor Role = "Profesor"
	// RoleEstudiante is an exported constant or variable used by the credential service.
	RoleEstudiante Role = "Estudiante"
)

// ParseRole maps free-form role input (including the synonyms accepted by the
// legacy tooling) onto a canonical Role. Unrecognized input maps to
// [RoleEstudiante], matching the historical default.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin", "administrador":
		return RoleAdmin
	case "profesor", "teacher", "docente":
		return RoleProfesor
	default:
		return RoleEstudiante
	}
}

// Letter returns the single-character code used to namespace sequential
// generated emails by role: a=admin, b=estudiante, c=profesor.
func (r Role) Letter() string {
	switch r {
	case RoleAdmin:
		return "a"
	case RoleProfesor:
		return "c"
	default:
		return "b"
	}
}

// IsAdminRole reports whether a stored role value (either field spelling)
// designates an administrator. Matching is trimmed and case-insensitive.
func IsAdminRole(raw string) bool {
	role := strings.ToLower(strings.TrimSpace(raw))
	return role == "admin" || role == "administrador"
}

// Profile is the application-level document describing a user's role,
// school, and password-policy flags. The stored document deliberately keeps
// the last issued temporary password in cleartext so administrators can read
// it back once; this is a known, accepted trade-off carried over from the
// platform's behavior, not an oversight.
type Profile = stores.ProfileRecord

// ResetRequest is a durable password-reset request record. Two collections
// of these exist side by side (admin notifications and self-service
// requests); both follow the same PENDING to RESOLVED lifecycle.
type ResetRequest = stores.RequestRecord

// Request status values shared by both reset collections.
const (
	// StatusPending is an exported constant or variable used by the credential service.
	StatusPending = stores.StatusPending
	// StatusResolved is an exported constant or variable used by the credential service.
	StatusResolved = stores.StatusResolved
)

// Workflow selects one of the two parallel reset-request collections.
type Workflow int

const (
	// WorkflowAdmin is an exported constant or variable used by the credential service.
	WorkflowAdmin Workflow = iota
	// WorkflowSelf is an exported constant or variable used by the credential service.
	WorkflowSelf
)

// AdminIdentity is the resolved caller identity returned by
// [Engine.ResolveAdmin]. ViaClaim records which of the two authorization
// paths granted access (claim fast path vs. role-document fallback); it is
// never exposed to callers of the HTTP surface.
type AdminIdentity struct {
	UID      string
	Email    string
	ViaClaim bool
}

// TokenClaims are the verified claims extracted from a bearer token by the
// identity collaborator.
type TokenClaims struct {
	UID   string
	Email string
	Admin bool
}

// IdentityRecord is the authentication-provider view of a user: credential
// holder, external to the profile document.
type IdentityRecord struct {
	UID         string
	Email       string
	DisplayName string
	Disabled    bool
}

// CreateIdentityInput is the input for [IdentityProvider.CreateIdentity].
type CreateIdentityInput struct {
	Email       string
	Password    string
	DisplayName string
	Disabled    bool
}

// IdentityProvider is the interface to the external authentication
// collaborator. Lookup methods return [ErrIdentityNotFound] for unknown
// accounts; any other error is a backend failure and must be propagated,
// never treated as "not found".
type IdentityProvider interface {
	CreateIdentity(ctx context.Context, input CreateIdentityInput) (IdentityRecord, error)
	UpdatePassword(ctx context.Context, uid, newPassword string) error
	SetDisabled(ctx context.Context, uid string, disabled bool) error
	GetByEmail(ctx context.Context, email string) (IdentityRecord, error)
	GetByUID(ctx context.Context, uid string) (IdentityRecord, error)
	VerifyToken(ctx context.Context, token string) (TokenClaims, error)
}

// ProvisionInput is the input for [Engine.ProvisionAccount].
type ProvisionInput struct {
	Nombre          string
	ApellidoPaterno string
	ApellidoMaterno string
	Role            string
	SchoolID        string
}

// ProvisionResult is returned by [Engine.ProvisionAccount]. TempPassword is
// the plaintext temporary credential for one-time admin display.
type ProvisionResult struct {
	UID          string
	Email        string
	TempPassword string
}

// ResolveResult is returned by the reset-resolution operations.
// AlreadyResolved reports the idempotent no-op case: the request had been
// resolved before and nothing was mutated.
type ResolveResult struct {
	UID             string
	AlreadyResolved bool
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a specific counter in the in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricResetRequestAccepted is an exported constant or variable used by the credential service.
	MetricResetRequestAccepted = internalmetrics.MetricResetRequestAccepted
	// MetricResetRequestLimited is an exported constant or variable used by the credential service.
	MetricResetRequestLimited = internalmetrics.MetricResetRequestLimited
	// MetricResetRequestMasked is an exported constant or variable used by the credential service.
	MetricResetRequestMasked = internalmetrics.MetricResetRequestMasked
	// MetricResetResolved is an exported constant or variable used by the credential service.
	MetricResetResolved = internalmetrics.MetricResetResolved
	// MetricResetResolveIdempotent is an exported constant or variable used by the credential service.
	MetricResetResolveIdempotent = internalmetrics.MetricResetResolveIdempotent
	// MetricProvisionSuccess is an exported constant or variable used by the credential service.
	MetricProvisionSuccess = internalmetrics.MetricProvisionSuccess
	// MetricProvisionRollback is an exported constant or variable used by the credential service.
	MetricProvisionRollback = internalmetrics.MetricProvisionRollback
	// MetricProvisionEmailCollision is an exported constant or variable used by the credential service.
	MetricProvisionEmailCollision = internalmetrics.MetricProvisionEmailCollision
	// MetricAuthzClaimGrant is an exported constant or variable used by the credential service.
	MetricAuthzClaimGrant = internalmetrics.MetricAuthzClaimGrant
	// MetricAuthzRoleGrant is an exported constant or variable used by the credential service.
	MetricAuthzRoleGrant = internalmetrics.MetricAuthzRoleGrant
	// MetricAuthzDenied is an exported constant or variable used by the credential service.
	MetricAuthzDenied = internalmetrics.MetricAuthzDenied
	// MetricPasswordChangeCompleted is an exported constant or variable used by the credential service.
	MetricPasswordChangeCompleted = internalmetrics.MetricPasswordChangeCompleted
)

// Metrics holds atomic counters for engine operations.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{Enabled: cfg.Enabled})
}

// nowFunc exists so tests can pin the clock.
type nowFunc func() time.Time
