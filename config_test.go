package credsvc

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig must validate, got %v", err)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty domain", func(c *Config) { c.EmailDomain = "" }, "EmailDomain"},
		{"zero rate max", func(c *Config) { c.RateLimit.AdminIntakeIP.Max = 0 }, "Max"},
		{"zero rate window", func(c *Config) { c.RateLimit.SelfIntakeIP.Window = 0 }, "Window"},
		{"zero probe attempts", func(c *Config) { c.Provision.EmailProbeAttempts = 0 }, "EmailProbeAttempts"},
		{"zero uniqueness attempts", func(c *Config) { c.Provision.PasswordUniquenessAttempts = 0 }, "PasswordUniquenessAttempts"},
		{"short password length", func(c *Config) { c.Provision.PasswordLength = 8 }, "PasswordLength"},
		{"zero validity", func(c *Config) { c.Reset.Validity = 0 }, "Validity"},
		{"empty collection", func(c *Config) { c.Reset.AdminCollection = "" }, "collections"},
		{"colliding collections", func(c *Config) { c.Reset.SelfCollection = c.Reset.AdminCollection }, "differ"},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected validation failure", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}

func TestDefaultRatePolicies(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.RateLimit.AdminIntakeIP.Max != 5 || cfg.RateLimit.AdminIntakeIP.Window != time.Hour {
		t.Fatalf("unexpected admin IP policy: %+v", cfg.RateLimit.AdminIntakeIP)
	}
	if cfg.RateLimit.AdminIntakeEmail.Max != 5 || cfg.RateLimit.AdminIntakeEmail.Window != time.Hour {
		t.Fatalf("unexpected admin email policy: %+v", cfg.RateLimit.AdminIntakeEmail)
	}
	if cfg.RateLimit.SelfIntakeIP.Max != 3 || cfg.RateLimit.SelfIntakeIP.Window != 15*time.Minute {
		t.Fatalf("unexpected self-service policy: %+v", cfg.RateLimit.SelfIntakeIP)
	}
	if cfg.Reset.Validity != 90*24*time.Hour {
		t.Fatalf("unexpected validity window: %v", cfg.Reset.Validity)
	}
}

func TestBuilderRequiresDependencies(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	if _, err := New().Build(); err == nil {
		t.Fatal("expected error without redis client")
	}
	if _, err := New().WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error without identity provider")
	}

	bad := DefaultConfig()
	bad.EmailDomain = ""
	if _, err := New().WithConfig(bad).WithRedis(rdb).WithIdentityProvider(newMockIdentityProvider()).Build(); err == nil {
		t.Fatal("expected invalid config rejected")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	b := New().WithRedis(rdb).WithIdentityProvider(newMockIdentityProvider())

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build rejected")
	}
}
