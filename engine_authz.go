package credsvc

import (
	"context"
	"errors"
)

// ResolveAdmin verifies a bearer token and decides whether the caller may use
// the privileged operations. Authorization is granted by either of two paths:
// a verified admin claim on the token (fast path, no store read), or an admin
// role on the caller's profile document under either field spelling. A nil
// return means "not an administrator"; the caller must not be told which
// check failed.
func (e *Engine) ResolveAdmin(ctx context.Context, bearerToken string) *AdminIdentity {
	if e == nil || e.identity == nil || bearerToken == "" {
		return nil
	}

	claims, err := e.identity.VerifyToken(ctx, bearerToken)
	if err != nil {
		e.metricInc(MetricAuthzDenied)
		e.emitAudit(ctx, auditEventAuthzDenied, false, "", "", "", err, nil)
		return nil
	}

	if claims.Admin {
		e.metricInc(MetricAuthzClaimGrant)
		return &AdminIdentity{
			UID:      claims.UID,
			Email:    claims.Email,
			ViaClaim: true,
		}
	}

	// Claim absent or false: fall back to the profile document. Admins
	// provisioned before claims were introduced only carry the role there.
	profile, err := e.profiles.Get(ctx, claims.UID)
	if err != nil {
		if !errors.Is(err, ErrProfileNotFound) {
			e.emitAudit(ctx, auditEventAuthzDenied, false, claims.UID, "", claims.Email, err, nil)
		}
		e.metricInc(MetricAuthzDenied)
		return nil
	}

	if !IsAdminRole(profile.Role) {
		e.metricInc(MetricAuthzDenied)
		e.emitAudit(ctx, auditEventAuthzDenied, false, claims.UID, "", claims.Email, nil, nil)
		return nil
	}

	e.metricInc(MetricAuthzRoleGrant)
	return &AdminIdentity{
		UID:      claims.UID,
		Email:    claims.Email,
		ViaClaim: false,
	}
}
