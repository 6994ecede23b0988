package authguard

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestDefaultConfigTTLs(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Tokens.TTL(PurposeVerify) != 24*time.Hour {
		t.Fatalf("unexpected verification TTL %v", cfg.Tokens.TTL(PurposeVerify))
	}
	if cfg.Tokens.TTL(PurposeReset) != time.Hour {
		t.Fatalf("unexpected reset TTL %v", cfg.Tokens.TTL(PurposeReset))
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"sweep interval", func(c *Config) { c.RateLimit.SweepInterval = 0 }, "SweepInterval"},
		{"key prefix", func(c *Config) { c.RateLimit.KeyPrefix = "" }, "KeyPrefix"},
		{"negative limit", func(c *Config) { c.RateLimit.Login.Limit = -1 }, "login Limit"},
		{"zero window", func(c *Config) { c.RateLimit.Register.Window = 0 }, "register Window"},
		{"no dimension", func(c *Config) {
			c.RateLimit.ForgotPassword.ByIP = false
			c.RateLimit.ForgotPassword.ByEmail = false
		}, "ByIP or ByEmail"},
		{"negative timeout", func(c *Config) { c.Counter.Timeout = -time.Second }, "Timeout"},
		{"relative rest url", func(c *Config) {
			c.Counter.RESTURL = "/pipeline"
			c.Counter.RESTToken = "t"
		}, "RESTURL"},
		{"rest url without token", func(c *Config) { c.Counter.RESTURL = "https://eu1.example.io" }, "RESTToken"},
		{"verification ttl", func(c *Config) { c.Tokens.VerificationTTL = 0 }, "VerificationTTL"},
		{"reset ttl", func(c *Config) { c.Tokens.ResetTTL = -time.Minute }, "ResetTTL"},
		{"retention", func(c *Config) { c.Tokens.ExpiredRetention = -1 }, "ExpiredRetention"},
		{"audit buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}, "BufferSize"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestConfigValidateAllowsDimensionlessPolicyWhenDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.Login.ByIP = false
	cfg.RateLimit.Login.ByEmail = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestRateLimitConfigPolicyUnknownAction(t *testing.T) {
	if _, ok := DefaultConfig().RateLimit.Policy(AuthAction("nope")); ok {
		t.Fatal("expected unknown action lookup to fail")
	}
}

func TestEngineConfigReturnsCopy(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{})
	cfg := te.Config()
	cfg.RateLimit.Login.Limit = 1

	if p, _ := te.RateLimitPolicy(ActionLogin); p.Limit != 10 {
		t.Fatalf("engine config must not change through a copy, got %d", p.Limit)
	}
}
