package credsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ProvisionAccount creates a new user end to end: synthesizes a sequential
// institutional email, generates a temporary password, creates the identity,
// and writes the profile document. When the profile write fails the identity
// is disabled, not deleted, so the uid can be inspected and recovered later.
//
// actor is the resolving administrator for audit attribution; a nil actor is
// accepted for trusted offline callers.
func (e *Engine) ProvisionAccount(ctx context.Context, actor *AdminIdentity, input ProvisionInput) (*ProvisionResult, error) {
	if e == nil || e.identity == nil {
		return nil, ErrEngineNotReady
	}

	nombre := strings.TrimSpace(input.Nombre)
	paterno := strings.TrimSpace(input.ApellidoPaterno)
	materno := strings.TrimSpace(input.ApellidoMaterno)
	if nombre == "" || paterno == "" || materno == "" || strings.TrimSpace(input.Role) == "" {
		return nil, fmt.Errorf("%w: nombre, apellidoPaterno, apellidoMaterno, role", ErrMissingField)
	}

	role := ParseRole(input.Role)
	letter := role.Letter()

	email, err := e.reserveEmail(ctx, nombre, letter)
	if err != nil {
		return nil, err
	}

	tempPassword, err := e.issueTempPassword(ctx)
	if err != nil {
		return nil, err
	}

	displayName := strings.TrimSpace(nombre + " " + paterno + " " + materno)

	identity, err := e.identity.CreateIdentity(ctx, CreateIdentityInput{
		Email:       email,
		Password:    tempPassword,
		DisplayName: displayName,
	})
	if err != nil {
		if errors.Is(err, ErrIdentityExists) {
			return nil, ErrIdentityExists
		}
		return nil, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}

	now := e.timeNow()
	profile := &Profile{
		UID:                    identity.UID,
		Email:                  email,
		Nombre:                 nombre,
		ApellidoPaterno:        paterno,
		ApellidoMaterno:        materno,
		DisplayName:            displayName,
		Role:                   string(role),
		RoleLetter:             letter,
		SchoolID:               strings.TrimSpace(input.SchoolID),
		PasswordChangeRequired: true,
		TempPassword:           tempPassword,
		CreatedAt:              now,
	}
	validUntil := now.Add(e.config.Reset.Validity)
	profile.PasswordValidUntil = &validUntil

	if err := e.profiles.Create(ctx, profile); err != nil {
		// The identity exists but the profile does not. Disable rather than
		// delete so the half-provisioned account cannot sign in but remains
		// recoverable by an operator.
		rollbackErr := e.identity.SetDisabled(ctx, identity.UID, true)
		e.metricInc(MetricProvisionRollback)
		e.emitAudit(ctx, auditEventUserCreateRollback, rollbackErr == nil, actorUID(actor), identity.UID, email, err, nil)
		return nil, fmt.Errorf("%w: %v", ErrProfileWriteFailed, err)
	}

	e.metricInc(MetricProvisionSuccess)
	e.emitAudit(ctx, auditEventUserCreated, true, actorUID(actor), identity.UID, email, nil, func() map[string]string {
		return map[string]string{"role": string(role), "roleLetter": letter}
	})

	return &ProvisionResult{
		UID:          identity.UID,
		Email:        email,
		TempPassword: tempPassword,
	}, nil
}

// reserveEmail synthesizes candidate addresses from the sequential role
// counter until one is free at the identity backend, within the configured
// probe budget. The counter only ever advances, so a candidate skipped over a
// collision is never reissued.
func (e *Engine) reserveEmail(ctx context.Context, nombre, letter string) (string, error) {
	attempts := e.config.Provision.EmailProbeAttempts
	if attempts <= 0 {
		attempts = 1
	}

	// First rune, not first byte; names like "Ángel" must not yield a broken
	// local-part.
	initial := strings.ToLower(string([]rune(nombre)[0]))
	year := e.timeNow().Year()

	for i := 0; i < attempts; i++ {
		seq, err := e.counters.Next(ctx, letter)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		candidate := fmt.Sprintf("%s%d%s%d@%s", initial, year, letter, seq, e.config.EmailDomain)

		_, err = e.identity.GetByEmail(ctx, candidate)
		if errors.Is(err, ErrIdentityNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
		}

		// Candidate taken: someone was created out of band under this
		// address. Advance and try the next sequence value.
		e.metricInc(MetricProvisionEmailCollision)
	}

	return "", ErrEmailCollision
}

func actorUID(actor *AdminIdentity) string {
	if actor == nil {
		return ""
	}
	return actor.UID
}
