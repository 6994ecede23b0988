package authguard

import (
	"errors"
	"strings"
	"time"
)

// LintSeverity ranks configuration warnings.
type LintSeverity uint8

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintHigh:
		return "HIGH"
	case LintWarn:
		return "WARN"
	default:
		return "INFO"
	}
}

// LintWarning is one finding about a configuration that validates but is
// probably not what a production deployment wants.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the list of findings returned by Config.Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins every warning at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	matched := r.BySeverity(min)
	if len(matched) == 0 {
		return nil
	}
	parts := make([]string, 0, len(matched))
	for _, w := range matched {
		parts = append(parts, w.Severity.String()+" "+w.Code+": "+w.Message)
	}
	return errors.New("config lint: " + strings.Join(parts, "; "))
}

const (
	lintMaxResetTTL        = time.Hour
	lintMaxVerificationTTL = 72 * time.Hour
	lintMaxCounterTimeout  = 5 * time.Second
)

// Lint reports risky but valid settings. It does not replace Validate.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if !c.RateLimit.Enabled {
		add("rate_limits_disabled", LintHigh, "authentication endpoints are not rate limited")
	} else {
		for _, action := range allAuthActions {
			p, _ := c.RateLimit.Policy(action)
			if p.Limit == 0 {
				add("policy_blocks_all", LintHigh, string(action)+" limit is 0 and denies every request")
			}
		}
		if !c.RateLimit.ForgotPassword.ByEmail {
			add("forgot_email_unthrottled", LintWarn, "forgot-password is not limited per email; one address can be mail-bombed from many IPs")
		}
		if !c.RateLimit.Login.ByEmail {
			add("login_email_unthrottled", LintWarn, "login is not limited per email; distributed guessing against one account is unbounded")
		}
	}

	if c.Counter.Timeout == 0 {
		add("counter_timeout_disabled", LintWarn, "distributed counter calls are bounded only by the request context")
	} else if c.Counter.Timeout > lintMaxCounterTimeout {
		add("counter_timeout_long", LintWarn, "a slow counter backend delays every authentication request")
	}

	if c.Tokens.ResetTTL > lintMaxResetTTL {
		add("reset_ttl_long", LintWarn, "reset tokens authorize a credential change and should expire within an hour")
	}
	if c.Tokens.VerificationTTL > lintMaxVerificationTTL {
		add("verification_ttl_long", LintWarn, "verification tokens live longer than three days")
	}
	if c.Tokens.ExpiredRetention == 0 {
		add("expired_retention_zero", LintInfo, "the Redis token store reports expired tokens as invalid")
	}

	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "security events are not audited")
	} else if !c.Audit.DropIfFull {
		add("audit_blocking", LintWarn, "a slow audit sink blocks request handling")
	}

	return ws
}
