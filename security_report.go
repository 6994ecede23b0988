package authguard

import (
	"time"

	"github.com/MrEthical07/authguard/internal/rate"
	"github.com/MrEthical07/authguard/internal/tokens"
)

// SecurityReport summarizes the posture an Engine was built with.
type SecurityReport struct {
	RateLimitingActive bool
	CounterBackend     string
	CounterTimeout     time.Duration
	SweepInterval      time.Duration
	Policies           map[AuthAction]RateLimitPolicy

	VerificationTTL  time.Duration
	ResetTTL         time.Duration
	ExpiredRetention time.Duration
	TokenEntropyBits int
	TokenHash        string

	AuditEnabled   bool
	MetricsEnabled bool
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	backend := rate.BackendMemory
	if e.limiter != nil && e.limiter.PrimaryName() != "" {
		backend = e.limiter.PrimaryName()
	}

	policies := make(map[AuthAction]RateLimitPolicy, len(allAuthActions))
	for _, action := range allAuthActions {
		p, _ := e.config.RateLimit.Policy(action)
		policies[action] = p
	}

	return SecurityReport{
		RateLimitingActive: e.config.RateLimit.Enabled,
		CounterBackend:     backend,
		CounterTimeout:     e.config.Counter.Timeout,
		SweepInterval:      e.config.RateLimit.SweepInterval,
		Policies:           policies,
		VerificationTTL:    e.config.Tokens.VerificationTTL,
		ResetTTL:           e.config.Tokens.ResetTTL,
		ExpiredRetention:   e.config.Tokens.ExpiredRetention,
		TokenEntropyBits:   tokens.SecretSize * 8,
		TokenHash:          "sha256",
		AuditEnabled:       e.config.Audit.Enabled,
		MetricsEnabled:     e.config.Metrics.Enabled,
	}
}
