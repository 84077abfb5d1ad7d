package credsvc

import (
	"context"
	"testing"
)

func TestResolveAdminClaimFastPath(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	provider := newMockIdentityProvider()
	provider.tokens["tok-claim"] = TokenClaims{UID: "u1", Email: "root@codekids.com", Admin: true}

	engine := newTestEngine(t, rdb, provider, testConfig())

	// No profile document exists; the claim alone must grant.
	admin := engine.ResolveAdmin(context.Background(), "tok-claim")
	if admin == nil {
		t.Fatal("expected grant via claim")
	}
	if !admin.ViaClaim {
		t.Fatal("expected ViaClaim to be set")
	}
	if admin.UID != "u1" || admin.Email != "root@codekids.com" {
		t.Fatalf("unexpected identity: %+v", admin)
	}
}

func TestResolveAdminRoleDocumentFallback(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	provider := newMockIdentityProvider()
	provider.tokens["tok-role"] = TokenClaims{UID: "u2", Email: "dir@codekids.com", Admin: false}

	engine := newTestEngine(t, rdb, provider, testConfig())

	seedProfile(t, engine, &Profile{
		UID:   "u2",
		Email: "dir@codekids.com",
		Role:  "administrador",
	})

	admin := engine.ResolveAdmin(context.Background(), "tok-role")
	if admin == nil {
		t.Fatal("expected grant via role document")
	}
	if admin.ViaClaim {
		t.Fatal("expected role-document path, not claim")
	}
}

func TestResolveAdminLegacyRolFieldGrants(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	provider := newMockIdentityProvider()
	provider.tokens["tok-legacy"] = TokenClaims{UID: "u3", Email: "old@codekids.com"}

	engine := newTestEngine(t, rdb, provider, testConfig())

	// Simulate a pre-migration document carrying only the legacy spelling.
	ctx := context.Background()
	key := engine.config.Storage.RedisPrefix + ":profile:u3"
	doc := `{"uid":"u3","email":"old@codekids.com","rol":"admin","createdAt":"2024-01-01T00:00:00Z"}`
	if err := rdb.Set(ctx, key, doc, 0).Err(); err != nil {
		t.Fatalf("seed legacy doc failed: %v", err)
	}

	if engine.ResolveAdmin(ctx, "tok-legacy") == nil {
		t.Fatal("expected grant via legacy rol field")
	}
}

func TestResolveAdminDenials(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	provider := newMockIdentityProvider()
	provider.tokens["tok-student"] = TokenClaims{UID: "u4", Email: "kid@codekids.com"}
	provider.tokens["tok-noprofile"] = TokenClaims{UID: "ghost", Email: "ghost@codekids.com"}

	engine := newTestEngine(t, rdb, provider, testConfig())

	seedProfile(t, engine, &Profile{
		UID:   "u4",
		Email: "kid@codekids.com",
		Role:  "Estudiante",
	})

	ctx := context.Background()

	cases := []struct {
		name  string
		token string
	}{
		{"invalid token", "tok-bogus"},
		{"empty token", ""},
		{"non-admin role", "tok-student"},
		{"no profile and no claim", "tok-noprofile"},
	}
	for _, tc := range cases {
		if engine.ResolveAdmin(ctx, tc.token) != nil {
			t.Fatalf("%s: expected denial", tc.name)
		}
	}

	// The empty token short-circuits before the deny counter.
	denied := engine.metrics.Get(MetricAuthzDenied)
	if denied != 3 {
		t.Fatalf("expected 3 denials counted, got %d", denied)
	}
}
