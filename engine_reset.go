package credsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/codekids/credsvc/credential"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RequestAdminPasswordReset records an admin-mediated reset request for the
// given email. The caller is throttled per client IP and per normalized email
// independently; exceeding either budget returns [ErrRateLimited].
//
// Unknown emails are recorded like known ones, with the account linkage left
// empty, so the response never reveals whether an account exists. Backend
// failures are propagated; this intake is privileged infrastructure and the
// caller is expected to surface them.
func (e *Engine) RequestAdminPasswordReset(ctx context.Context, email string) (*ResetRequest, error) {
	if e == nil || e.adminRequests == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrEmailRequired
	}

	ip := clientIPFromContext(ctx)

	allowed, err := e.limiter.Allow(ctx, "adminIntake:ip:"+ip, e.config.RateLimit.AdminIntakeIP.Max, e.config.RateLimit.AdminIntakeIP.Window)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if allowed {
		allowed, err = e.limiter.Allow(ctx, "adminIntake:email:"+email, e.config.RateLimit.AdminIntakeEmail.Max, e.config.RateLimit.AdminIntakeEmail.Window)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	if !allowed {
		e.metricInc(MetricResetRequestLimited)
		e.emitAudit(ctx, auditEventRateLimited, false, "", "", email, ErrRateLimited, func() map[string]string {
			return map[string]string{"workflow": "admin"}
		})
		return nil, ErrRateLimited
	}

	rec := &ResetRequest{
		ID:          uuid.New().String(),
		Email:       email,
		RequesterIP: ip,
		Status:      StatusPending,
		RequestedAt: e.timeNow(),
	}

	// Enrich with the account linkage when one exists. A missing profile is
	// not an error here; the record simply stays unlinked.
	profile, err := e.profiles.GetByEmail(ctx, email)
	switch {
	case err == nil:
		rec.UserID = profile.UID
		rec.UserName = profile.DisplayName
	case errors.Is(err, ErrProfileNotFound):
	default:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.adminRequests.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricResetRequestAccepted)
	e.emitAudit(ctx, auditEventResetRequested, true, "", rec.UserID, email, nil, func() map[string]string {
		return map[string]string{"workflow": "admin", "requestId": rec.ID}
	})

	return rec, nil
}

// RequestPasswordReset records a self-service reset request. The caller is
// throttled per client IP; exceeding the budget returns [ErrRateLimited].
//
// Every failure other than a missing email and the rate limit is masked: the
// method returns nil and the caller reports the request as received. The
// public surface must not let an anonymous caller distinguish "account does
// not exist" from "backend is down" by probing this endpoint.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.selfRequests == nil {
		return ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" {
		return ErrEmailRequired
	}

	ip := clientIPFromContext(ctx)

	allowed, err := e.limiter.Allow(ctx, "selfIntake:ip:"+ip, e.config.RateLimit.SelfIntakeIP.Max, e.config.RateLimit.SelfIntakeIP.Window)
	if err != nil {
		e.metricInc(MetricResetRequestMasked)
		e.emitAudit(ctx, auditEventIntakeMasked, false, "", "", email, err, nil)
		return nil
	}
	if !allowed {
		e.metricInc(MetricResetRequestLimited)
		e.emitAudit(ctx, auditEventRateLimited, false, "", "", email, ErrRateLimited, func() map[string]string {
			return map[string]string{"workflow": "self"}
		})
		return ErrRateLimited
	}

	rec := &ResetRequest{
		ID:          uuid.New().String(),
		Email:       email,
		UserName:    "Usuario",
		RequesterIP: ip,
		Status:      StatusPending,
		RequestedAt: e.timeNow(),
	}

	profile, err := e.profiles.GetByEmail(ctx, email)
	switch {
	case err == nil:
		rec.UserID = profile.UID
		if profile.DisplayName != "" {
			rec.UserName = profile.DisplayName
		}
	case errors.Is(err, ErrProfileNotFound):
		// Neutral placeholder stays; the record must not reveal whether the
		// account exists.
	default:
		e.metricInc(MetricResetRequestMasked)
		e.emitAudit(ctx, auditEventIntakeMasked, false, "", "", email, err, nil)
		return nil
	}

	if err := e.selfRequests.Save(ctx, rec); err != nil {
		e.metricInc(MetricResetRequestMasked)
		e.emitAudit(ctx, auditEventIntakeMasked, false, "", rec.UserID, email, err, nil)
		return nil
	}

	e.metricInc(MetricResetRequestAccepted)
	e.emitAudit(ctx, auditEventResetRequested, true, "", rec.UserID, email, nil, func() map[string]string {
		return map[string]string{"workflow": "self", "requestId": rec.ID}
	})

	return nil
}

// ResolveAdminPasswordReset resolves a request in the admin-mediated
// collection. See [Engine.ResolvePasswordResetRequest] for the shared
// semantics.
func (e *Engine) ResolveAdminPasswordReset(ctx context.Context, admin *AdminIdentity, requestID, manualPassword string) (*ResolveResult, error) {
	return e.resolveReset(ctx, WorkflowAdmin, admin, requestID, manualPassword)
}

// ResolvePasswordResetRequest resolves a request in the self-service
// collection: issues a temporary password (generated, or the supplied manual
// one after a policy check), pushes it to the identity backend, flags the
// profile for a forced change with a fresh validity window, and stamps the
// request RESOLVED exactly once. A request that was already resolved returns
// AlreadyResolved true and mutates nothing.
func (e *Engine) ResolvePasswordResetRequest(ctx context.Context, admin *AdminIdentity, requestID, manualPassword string) (*ResolveResult, error) {
	return e.resolveReset(ctx, WorkflowSelf, admin, requestID, manualPassword)
}

func (e *Engine) resolveReset(ctx context.Context, workflow Workflow, admin *AdminIdentity, requestID, manualPassword string) (*ResolveResult, error) {
	store := e.requestStore(workflow)
	if store == nil || e.identity == nil {
		return nil, ErrEngineNotReady
	}
	if admin == nil || admin.UID == "" {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(requestID) == "" {
		return nil, ErrInvalidParams
	}

	rec, err := store.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if rec.Status == StatusResolved {
		e.metricInc(MetricResetResolveIdempotent)
		return &ResolveResult{UID: rec.UserID, AlreadyResolved: true}, nil
	}

	uid := rec.UserID
	targetEmail := rec.Email
	if uid == "" {
		profile, err := e.profiles.GetByEmail(ctx, rec.Email)
		if err != nil {
			if errors.Is(err, ErrProfileNotFound) {
				return nil, ErrIdentityNotFound
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		uid = profile.UID
		targetEmail = profile.Email
	}

	var tempPassword string
	if manualPassword != "" {
		criteria := credential.Check(manualPassword, targetEmail)
		if !criteria.Met() {
			return nil, fmt.Errorf("%w: %s", ErrPasswordPolicy, strings.Join(criteria.Unmet(), ", "))
		}
		tempPassword = manualPassword
	} else {
		tempPassword, err = e.issueTempPassword(ctx)
		if err != nil {
			return nil, err
		}
	}

	if err := e.identity.UpdatePassword(ctx, uid, tempPassword); err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}

	now := e.timeNow()
	validUntil := now.Add(e.config.Reset.Validity)
	if err := e.profiles.MarkPasswordReset(ctx, uid, admin.UID, now, validUntil, tempPassword); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileWriteFailed, err)
	}

	resolved, already, err := store.Resolve(ctx, requestID, admin.UID, now, tempPassword)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if already {
		// Lost the race to another resolver after the password work was done.
		// The stamp stays theirs; report idempotent success.
		e.metricInc(MetricResetResolveIdempotent)
		return &ResolveResult{UID: resolved.UserID, AlreadyResolved: true}, nil
	}

	e.metricInc(MetricResetResolved)
	e.emitAudit(ctx, auditEventResetResolved, true, admin.UID, uid, targetEmail, nil, func() map[string]string {
		return map[string]string{
			"requestId": requestID,
			"manual":    fmt.Sprintf("%t", manualPassword != ""),
		}
	})

	return &ResolveResult{UID: uid}, nil
}

// CompletePasswordChange finishes a forced password change: validates the new
// password against the complexity policy, pushes it to the identity backend,
// and clears the forced-change flags and stored temporary credential.
func (e *Engine) CompletePasswordChange(ctx context.Context, uid, newPassword string) error {
	if e == nil || e.identity == nil {
		return ErrEngineNotReady
	}
	if strings.TrimSpace(uid) == "" {
		return ErrInvalidParams
	}

	profile, err := e.profiles.Get(ctx, uid)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	criteria := credential.Check(newPassword, profile.Email)
	if !criteria.Met() {
		return fmt.Errorf("%w: %s", ErrPasswordPolicy, strings.Join(criteria.Unmet(), ", "))
	}

	if err := e.identity.UpdatePassword(ctx, uid, newPassword); err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return ErrIdentityNotFound
		}
		return fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}

	if err := e.profiles.ClearPasswordFlags(ctx, uid, e.timeNow()); err != nil {
		return fmt.Errorf("%w: %v", ErrProfileWriteFailed, err)
	}

	e.metricInc(MetricPasswordChangeCompleted)
	e.emitAudit(ctx, auditEventPasswordChanged, true, uid, uid, profile.Email, nil, nil)

	return nil
}

// issueTempPassword generates a temporary password and retries, within the
// configured budget, while the candidate collides with one already held by a
// profile. Uniqueness is best-effort; the budget exhausting falls back to the
// last candidate rather than failing the operation.
func (e *Engine) issueTempPassword(ctx context.Context) (string, error) {
	attempts := e.config.Provision.PasswordUniquenessAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var pw string
	for i := 0; i < attempts; i++ {
		var err error
		pw, err = credential.Generate(e.config.Provision.PasswordLength)
		if err != nil {
			return "", err
		}
		inUse, err := e.profiles.TempPasswordInUse(ctx, pw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if !inUse {
			return pw, nil
		}
	}
	return pw, nil
}
