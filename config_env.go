package authguard

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigFromEnv overlays AUTHGUARD_* environment variables on DefaultConfig.
// Unparseable values keep the default; call Validate on the result.
//
// The REST counter also honours UPSTASH_REDIS_REST_URL and
// UPSTASH_REDIS_REST_TOKEN when the AUTHGUARD_ variants are unset.
//
// Per-action policies read AUTHGUARD_LIMIT_<ACTION> and
// AUTHGUARD_WINDOW_<ACTION>, where ACTION is LOGIN, REGISTER, FORGOT, RESET
// or RESEND_VERIFICATION.
func ConfigFromEnv() Config {
	cfg := defaultConfig()

	cfg.RateLimit.Enabled = getEnvBool("AUTHGUARD_RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.KeyPrefix = getEnv("AUTHGUARD_RATE_LIMIT_PREFIX", cfg.RateLimit.KeyPrefix)
	cfg.RateLimit.SweepInterval = getEnvDuration("AUTHGUARD_RATE_LIMIT_SWEEP_INTERVAL", cfg.RateLimit.SweepInterval)
	cfg.RateLimit.Login = policyFromEnv(ActionLogin, cfg.RateLimit.Login)
	cfg.RateLimit.Register = policyFromEnv(ActionRegister, cfg.RateLimit.Register)
	cfg.RateLimit.ForgotPassword = policyFromEnv(ActionForgotPassword, cfg.RateLimit.ForgotPassword)
	cfg.RateLimit.ResetPassword = policyFromEnv(ActionResetPassword, cfg.RateLimit.ResetPassword)
	cfg.RateLimit.ResendVerification = policyFromEnv(ActionResendVerification, cfg.RateLimit.ResendVerification)

	cfg.Counter.RESTURL = getEnv("AUTHGUARD_COUNTER_REST_URL", getEnv("UPSTASH_REDIS_REST_URL", cfg.Counter.RESTURL))
	cfg.Counter.RESTToken = getEnv("AUTHGUARD_COUNTER_REST_TOKEN", getEnv("UPSTASH_REDIS_REST_TOKEN", cfg.Counter.RESTToken))
	cfg.Counter.KeyPrefix = getEnv("AUTHGUARD_COUNTER_PREFIX", cfg.Counter.KeyPrefix)
	cfg.Counter.Timeout = getEnvDuration("AUTHGUARD_COUNTER_TIMEOUT", cfg.Counter.Timeout)

	cfg.Tokens.VerificationTTL = getEnvDuration("AUTHGUARD_VERIFICATION_TTL", cfg.Tokens.VerificationTTL)
	cfg.Tokens.ResetTTL = getEnvDuration("AUTHGUARD_RESET_TTL", cfg.Tokens.ResetTTL)
	cfg.Tokens.ExpiredRetention = getEnvDuration("AUTHGUARD_TOKEN_RETENTION", cfg.Tokens.ExpiredRetention)
	cfg.Tokens.RedisPrefix = getEnv("AUTHGUARD_TOKEN_PREFIX", cfg.Tokens.RedisPrefix)

	cfg.Audit.Enabled = getEnvBool("AUTHGUARD_AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.Audit.BufferSize = getEnvInt("AUTHGUARD_AUDIT_BUFFER", cfg.Audit.BufferSize)

	cfg.Metrics.Enabled = getEnvBool("AUTHGUARD_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.EnableLatencyHistograms = getEnvBool("AUTHGUARD_METRICS_LATENCY", cfg.Metrics.EnableLatencyHistograms)

	return cfg
}

func policyFromEnv(action AuthAction, p RateLimitPolicy) RateLimitPolicy {
	suffix := strings.ToUpper(strings.ReplaceAll(string(action), "-", "_"))
	p.Limit = getEnvInt("AUTHGUARD_LIMIT_"+suffix, p.Limit)
	p.Window = getEnvDuration("AUTHGUARD_WINDOW_"+suffix, p.Window)
	return p
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
