package credsvc

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRequestAdminPasswordResetRecordsUnknownEmail(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMockIdentityProvider(), testConfig())
	ctx := WithClientIP(context.Background(), "10.0.0.1")

	rec, err := engine.RequestAdminPasswordReset(ctx, "Nobody@Codekids.com")
	if err != nil {
		t.Fatalf("RequestAdminPasswordReset failed: %v", err)
	}

	if rec.Email != "nobody@codekids.com" {
		t.Fatalf("expected normalized email, got %q", rec.Email)
	}
	if rec.UserID != "" {
		t.Fatal("unknown account must leave the linkage empty")
	}
	if rec.Status != StatusPending {
		t.Fatalf("expected PENDING, got %q", rec.Status)
	}

	// The record must be durable even for unknown accounts.
	stored, err := engine.adminRequests.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("stored record lookup failed: %v", err)
	}
	if stored.RequesterIP != "10.0.0.1" {
		t.Fatalf("expected requester IP recorded, got %q", stored.RequesterIP)
	}
}

func TestRequestAdminPasswordResetLinksKnownAccount(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMockIdentityProvider(), testConfig())
	seedProfile(t, engine, &Profile{
		UID:         "u1",
		Email:       "m2025b1@codekids.com",
		DisplayName: "Maria Lopez",
		Role:        "Estudiante",
	})

	ctx := WithClientIP(context.Background(), "10.0.0.1")
	rec, err := engine.RequestAdminPasswordReset(ctx, "m2025b1@codekids.com")
	if err != nil {
		t.Fatalf("RequestAdminPasswordReset failed: %v", err)
	}
	if rec.UserID != "u1" || rec.UserName != "Maria Lopez" {
		t.Fatalf("expected linked record, got %+v", rec)
	}
}

func TestRequestAdminPasswordResetEmailRequired(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMockIdentityProvider(), testConfig())

	if _, err := engine.RequestAdminPasswordReset(context.Background(), "   "); !errors.Is(err, ErrEmailRequired) {
		t.Fatalf("expected ErrEmailRequired, got %v", err)
	}
}

func TestAdminIntakeWindowPerIPAndEmail(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := testConfig()
	cfg.RateLimit.AdminIntakeIP = RatePolicy{Max: 5, Window: time.Hour}
	cfg.RateLimit.AdminIntakeEmail = RatePolicy{Max: 5, Window: time.Hour}

	engine := newTestEngine(t, rdb, newMockIdentityProvider(), cfg)
	ctx := WithClientIP(context.Background(), "10.0.0.2")

	for i := 0; i < 5; i++ {
		if _, err := engine.RequestAdminPasswordReset(ctx, "same@codekids.com"); err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
	}

	// Sixth request for the same email trips the email budget even from a
	// fresh IP.
	freshIP := WithClientIP(context.Background(), "10.0.0.99")
	if _, err := engine.RequestAdminPasswordReset(freshIP, "same@codekids.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on email budget, got %v", err)
	}

	// Same IP is also exhausted for a different email.
	if _, err := engine.RequestAdminPasswordReset(ctx, "other@codekids.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on ip budget, got %v", err)
	}

	// After the window passes, the budget resets.
	mr.FastForward(time.Hour + time.Second)
	if _, err := engine.RequestAdminPasswordReset(ctx, "same@codekids.com"); err != nil {
		t.Fatalf("expected fresh window to allow, got %v", err)
	}
}

func TestSelfIntakeWindowAndPlaceholder(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := testConfig()
	cfg.RateLimit.SelfIntakeIP = RatePolicy{Max: 3, Window: 15 * time.Minute}

	engine := newTestEngine(t, rdb, newMockIdentityProvider(), cfg)
	ctx := WithClientIP(context.Background(), "172.16.0.1")

	for i := 0; i < 3; i++ {
		if err := engine.RequestPasswordReset(ctx, "ghost@codekids.com"); err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
	}
	if err := engine.RequestPasswordReset(ctx, "ghost@codekids.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(15*time.Minute + time.Second)
	if err := engine.RequestPasswordReset(ctx, "ghost@codekids.com"); err != nil {
		t.Fatalf("expected fresh window to allow, got %v", err)
	}

	pending, err := engine.PendingRequests(ctx, WorkflowSelf, 0)
	if err != nil {
		t.Fatalf("PendingRequests failed: %v", err)
	}
	if len(pending) != 4 {
		t.Fatalf("expected 4 recorded requests, got %d", len(pending))
	}
	for _, rec := range pending {
		if rec.UserName != "Usuario" {
			t.Fatalf("expected neutral placeholder for unknown account, got %q", rec.UserName)
		}
	}
}

func TestSelfIntakeMasksBackendFailure(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMockIdentityProvider(), testConfig())
	ctx := WithClientIP(context.Background(), "172.16.0.2")

	// Kill the backend under the engine; intake must still report success.
	mr.Close()

	if err := engine.RequestPasswordReset(ctx, "anyone@codekids.com"); err != nil {
		t.Fatalf("expected masked success, got %v", err)
	}
	if got := engine.metrics.Get(MetricResetRequestMasked); got != 1 {
		t.Fatalf("expected masked failure counted, got %d", got)
	}
}

func newResolvableRequest(t *testing.T, engine *Engine, provider *mockIdentityProvider) string {
	t.Helper()

	provider.put(IdentityRecord{UID: "u1", Email: "m2025b1@codekids.com"}, "OldPass123456!")
	seedProfile(t, engine, &Profile{
		UID:         "u1",
		Email:       "m2025b1@codekids.com",
		DisplayName: "Maria Lopez",
		Role:        "Estudiante",
	})

	ctx := WithClientIP(context.Background(), "10.0.0.1")
	rec, err := engine.RequestAdminPasswordReset(ctx, "m2025b1@codekids.com")
	if err != nil {
		t.Fatalf("intake failed: %v", err)
	}
	return rec.ID
}

func TestResolveAdminPasswordResetGeneratedPassword(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	provider := newMockIdentityProvider()
	engine := newTestEngine(t, rdb, provider, testConfig())
	id := newResolvableRequest(t, engine, provider)

	ctx := context.Background()
	admin := &AdminIdentity{UID: "admin-1"}

	result, err := engine.ResolveAdminPasswordReset(ctx, admin, id, "")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if result.AlreadyResolved {
		t.Fatal("first resolution must not report AlreadyResolved")
	}
	if result.UID != "u1" {
		t.Fatalf("expected target u1, got %q", result.UID)
	}

	// Identity credential updated to a policy-compliant password.
	pw := provider.password("u1")
	if pw == "OldPass123456!" {
		t.Fatal("expected credential to change")
	}
	if len(pw) != 12 {
		t.Fatalf("expected 12-char generated password, got %d", len(pw))
	}

	// Profile flagged with the validity window and audit fields.
	profile, err := engine.profiles.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("profile lookup failed: %v", err)
	}
	if !profile.PasswordChangeRequired {
		t.Fatal("expected forced-change flag")
	}
	if profile.PasswordValidUntil == nil {
		t.Fatal("expected validity window")
	}
	if profile.LastPasswordResetBy != "admin-1" {
		t.Fatalf("expected resolver stamped, got %q", profile.LastPasswordResetBy)
	}
	if profile.TempPassword != pw {
		t.Fatal("expected issued password retained for admin display")
	}

	// Request stamped resolved with the issued password.
	rec, err := engine.adminRequests.Get(ctx, id)
	if err != nil {
		t.Fatalf("request lookup failed: %v", err)
	}
	if rec.Status != StatusResolved || rec.ResolvedBy != "admin-1" || rec.IssuedTempPassword != pw {
		t.Fatalf("unexpected resolved record: %+v", rec)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	provider := newMockIdentityProvider()
	engine := newTestEngine(t, rdb, provider, testConfig())
	id := newResolvableRequest(t, engine, provider)

	ctx := context.Background()
	admin := &AdminIdentity{UID: "admin-1"}

	if _, err := engine.ResolveAdminPasswordReset(ctx, admin, id, ""); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	issuedPw := provider.password("u1")

	second, err := engine.ResolveAdminPasswordReset(ctx, &AdminIdentity{UID: "admin-2"}, id, "")
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if !second.AlreadyResolved {
		t.Fatal("expected AlreadyResolved on re-resolution")
	}

	// Nothing mutated: same credential, same resolver stamp.
	if provider.password("u1") != issuedPw {
		t.Fatal("re-resolution must not change the credential")
	}
	rec, err := engine.adminRequests.Get(ctx, id)
	if err != nil {
		t.Fatalf("request lookup failed: %v", err)
	}
	if rec.ResolvedBy != "admin-1" {
		t.Fatalf("expected original resolver kept, got %q", rec.ResolvedBy)
	}
}

func TestResolveConcurrentSingleWinner(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	provider := newMockIdentityProvider()
	engine := newTestEngine(t, rdb, provider, testConfig())
	id := newResolvableRequest(t, engine, provider)

	ctx := context.Background()

	const racers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			result, err := engine.ResolveAdminPasswordReset(ctx, &AdminIdentity{UID: "admin-racer"}, id, "")
			if err != nil {
				t.Errorf("racer %d failed: %v", n, err)
				return
			}
			if !result.AlreadyResolved {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winning resolution, got %d", wins)
	}
}

func TestResolveManualPasswordPolicy(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	provider := newMockIdentityProvider()
	engine := newTestEngine(t, rdb, provider, testConfig())
	id := newResolvableRequest(t, engine, provider)

	ctx := context.Background()
	admin := &AdminIdentity{UID: "admin-1"}

	// Contains the target's email local-part.
	_, err := engine.ResolveAdminPasswordReset(ctx, admin, id, "m2025b1Secret!9")
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
	if !strings.Contains(err.Error(), "contains_email_local_part") {
		t.Fatalf("expected named criterion, got %v", err)
	}

	// A compliant manual password goes through verbatim.
	if _, err := engine.ResolveAdminPasswordReset(ctx, admin, id, "Abcdef123456!"); err != nil {
		t.Fatalf("compliant manual password rejected: %v", err)
	}
	if provider.password("u1") != "Abcdef123456!" {
		t.Fatal("expected manual password issued verbatim")
	}
}

func TestResolveUnknownRequest(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMockIdentityProvider(), testConfig())

	_, err := engine.ResolveAdminPasswordReset(context.Background(), &AdminIdentity{UID: "a"}, "missing-id", "")
	if !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestResolveRequiresAdmin(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMockIdentityProvider(), testConfig())

	if _, err := engine.ResolveAdminPasswordReset(context.Background(), nil, "any", ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestResolveFallsBackToEmailLookup(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	provider := newMockIdentityProvider()
	engine := newTestEngine(t, rdb, provider, testConfig())

	// Request recorded before the account existed: no uid linkage.
	ctx := WithClientIP(context.Background(), "10.0.0.1")
	rec, err := engine.RequestAdminPasswordReset(ctx, "late@codekids.com")
	if err != nil {
		t.Fatalf("intake failed: %v", err)
	}
	if rec.UserID != "" {
		t.Fatal("expected unlinked request")
	}

	provider.put(IdentityRecord{UID: "u9", Email: "late@codekids.com"}, "OldPass123456!")
	seedProfile(t, engine, &Profile{UID: "u9", Email: "late@codekids.com", Role: "Profesor"})

	result, err := engine.ResolveAdminPasswordReset(ctx, &AdminIdentity{UID: "admin-1"}, rec.ID, "")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if result.UID != "u9" {
		t.Fatalf("expected email fallback to find u9, got %q", result.UID)
	}
}

func TestCompletePasswordChange(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	provider := newMockIdentityProvider()
	engine := newTestEngine(t, rdb, provider, testConfig())

	provider.put(IdentityRecord{UID: "u1", Email: "m2025b1@codekids.com"}, "Temp12345678!")
	validUntil := time.Now().Add(90 * 24 * time.Hour)
	seedProfile(t, engine, &Profile{
		UID:                    "u1",
		Email:                  "m2025b1@codekids.com",
		Role:                   "Estudiante",
		PasswordChangeRequired: true,
		PasswordValidUntil:     &validUntil,
		TempPassword:           "Temp12345678!",
	})

	ctx := context.Background()

	// Policy failure leaves everything untouched.
	if err := engine.CompletePasswordChange(ctx, "u1", "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}

	if err := engine.CompletePasswordChange(ctx, "u1", "FreshChoice99#x"); err != nil {
		t.Fatalf("CompletePasswordChange failed: %v", err)
	}

	if provider.password("u1") != "FreshChoice99#x" {
		t.Fatal("expected credential updated")
	}

	profile, err := engine.profiles.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("profile lookup failed: %v", err)
	}
	if profile.PasswordChangeRequired {
		t.Fatal("expected forced-change flag cleared")
	}
	if profile.PasswordValidUntil != nil {
		t.Fatal("expected validity window cleared")
	}
	if profile.TempPassword != "" {
		t.Fatal("expected stored temp password cleared")
	}
	if profile.LastLogin == nil {
		t.Fatal("expected lastLogin stamped")
	}
}

func TestCompletePasswordChangeUnknownProfile(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMockIdentityProvider(), testConfig())

	err := engine.CompletePasswordChange(context.Background(), "ghost", "FreshChoice99#x")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}
