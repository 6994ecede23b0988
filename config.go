package authguard

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config is the complete engine configuration. Start from DefaultConfig and
// override fields; Builder.Build validates the result.
type Config struct {
	RateLimit RateLimitConfig
	Counter   CounterConfig
	Tokens    TokenConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitPolicy bounds one AuthAction. ByIP and ByEmail select which
// dimensions CheckAuthAction enforces; each dimension gets its own counter
// with the same Limit and Window.
type RateLimitPolicy struct {
	Limit   int
	Window  time.Duration
	ByIP    bool
	ByEmail bool
}

// RateLimitConfig holds the per-action policies used by the CheckAuthAction
// family. CheckRateLimit takes its limit and window from the caller and only
// honours Enabled and SweepInterval.
type RateLimitConfig struct {
	Enabled bool
	// KeyPrefix is the <feature> segment of generated keys.
	KeyPrefix string
	// SweepInterval bounds how often the in-memory fallback prunes elapsed
	// windows.
	SweepInterval time.Duration

	Login              RateLimitPolicy
	Register           RateLimitPolicy
	ForgotPassword     RateLimitPolicy
	ResetPassword      RateLimitPolicy
	ResendVerification RateLimitPolicy
}

// Policy returns the policy for action.
func (c RateLimitConfig) Policy(action AuthAction) (RateLimitPolicy, bool) {
	switch action {
	case ActionLogin:
		return c.Login, true
	case ActionRegister:
		return c.Register, true
	case ActionForgotPassword:
		return c.ForgotPassword, true
	case ActionResetPassword:
		return c.ResetPassword, true
	case ActionResendVerification:
		return c.ResendVerification, true
	default:
		return RateLimitPolicy{}, false
	}
}

/*
====================================
COUNTER CONFIG
====================================
*/

// CounterConfig selects the distributed counter. A non-empty RESTURL selects
// the REST pipeline backend; otherwise a Redis client passed to
// Builder.WithRedis is used; otherwise the limiter runs memory-only.
type CounterConfig struct {
	RESTURL   string
	RESTToken string
	// KeyPrefix is prepended to every distributed counter key.
	KeyPrefix string
	// Timeout bounds each distributed call. Zero disables the engine-side
	// timeout and leaves it to the caller context.
	Timeout time.Duration
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls token lifetimes and the built-in Redis store.
type TokenConfig struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	// ExpiredRetention keeps expired records in the Redis store long enough
	// to report ConsumeExpired once before Redis prunes them.
	ExpiredRetention time.Duration
	RedisPrefix      string
}

// TTL returns the lifetime configured for purpose.
func (c TokenConfig) TTL(purpose TokenPurpose) time.Duration {
	if purpose == PurposeReset {
		return c.ResetTTL
	}
	return c.VerificationTTL
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process metric collection.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults: verification tokens live
// 24h, reset tokens 1h, and every auth action is limited per IP.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		RateLimit: RateLimitConfig{
			Enabled:       true,
			KeyPrefix:     "auth",
			SweepInterval: 60 * time.Second,
			Login: RateLimitPolicy{
				Limit:   10,
				Window:  15 * time.Minute,
				ByIP:    true,
				ByEmail: true,
			},
			Register: RateLimitPolicy{
				Limit:  5,
				Window: time.Hour,
				ByIP:   true,
			},
			ForgotPassword: RateLimitPolicy{
				Limit:   3,
				Window:  time.Hour,
				ByIP:    true,
				ByEmail: true,
			},
			ResetPassword: RateLimitPolicy{
				Limit:  10,
				Window: 15 * time.Minute,
				ByIP:   true,
			},
			ResendVerification: RateLimitPolicy{
				Limit:   3,
				Window:  time.Hour,
				ByIP:    true,
				ByEmail: true,
			},
		},
		Counter: CounterConfig{
			KeyPrefix: "agrl:",
			Timeout:   2 * time.Second,
		},
		Tokens: TokenConfig{
			VerificationTTL:  24 * time.Hour,
			ResetTTL:         time.Hour,
			ExpiredRetention: 24 * time.Hour,
			RedisPrefix:      "agtk",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	// Rate limit
	if c.RateLimit.SweepInterval <= 0 {
		return errors.New("RateLimit SweepInterval must be > 0")
	}
	if c.RateLimit.KeyPrefix == "" {
		return errors.New("RateLimit KeyPrefix must not be empty")
	}
	for _, action := range allAuthActions {
		p, _ := c.RateLimit.Policy(action)
		if p.Limit < 0 {
			return fmt.Errorf("RateLimit %s Limit must be >= 0", action)
		}
		if p.Window <= 0 {
			return fmt.Errorf("RateLimit %s Window must be > 0", action)
		}
		if c.RateLimit.Enabled && p.Limit > 0 && !p.ByIP && !p.ByEmail {
			return fmt.Errorf("RateLimit %s must enable ByIP or ByEmail", action)
		}
	}

	// Counter
	if c.Counter.Timeout < 0 {
		return errors.New("Counter Timeout must be >= 0")
	}
	if c.Counter.RESTURL != "" {
		u, err := url.Parse(c.Counter.RESTURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return errors.New("Counter RESTURL must be an absolute http(s) URL")
		}
		if c.Counter.RESTToken == "" {
			return errors.New("Counter RESTToken is required when RESTURL is set")
		}
	}

	// Tokens
	if c.Tokens.VerificationTTL <= 0 {
		return errors.New("Tokens VerificationTTL must be > 0")
	}
	if c.Tokens.ResetTTL <= 0 {
		return errors.New("Tokens ResetTTL must be > 0")
	}
	if c.Tokens.ExpiredRetention < 0 {
		return errors.New("Tokens ExpiredRetention must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

var allAuthActions = []AuthAction{
	ActionLogin,
	ActionRegister,
	ActionForgotPassword,
	ActionResetPassword,
	ActionResendVerification,
}
