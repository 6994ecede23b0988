package authguard

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authguard/internal/rate"
	"github.com/MrEthical07/authguard/internal/tokens"
)

const unknownClientIP = "unknown"

// RateLimitKey builds a key in the "<feature>:<action>:<dimension>:<value>"
// convention under the "auth" feature, e.g. auth:forgot:email:user@example.com.
func RateLimitKey(action AuthAction, dimension RateLimitDimension, value string) string {
	return buildRateLimitKey("auth", action, dimension, value)
}

func buildRateLimitKey(feature string, action AuthAction, dimension RateLimitDimension, value string) string {
	var sb strings.Builder
	sb.Grow(len(feature) + len(action) + len(dimension) + len(value) + 3)
	sb.WriteString(feature)
	sb.WriteByte(':')
	sb.WriteString(string(action))
	sb.WriteByte(':')
	sb.WriteString(string(dimension))
	sb.WriteByte(':')
	sb.WriteString(value)
	return sb.String()
}

// CheckRateLimit describes the checkratelimit operation and its observable behavior.
//
// CheckRateLimit records one hit for key and reports whether the hit fits in
// a fixed window of the given length. It never returns an error: when the
// distributed counter fails, the failure is logged and the per-process
// fallback answers. limit <= 0 or window <= 0 always denies. Denied results carry
// RetryAfter in whole seconds, never less than 1.
func (e *Engine) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) RateLimitResult {
	if e == nil || e.limiter == nil {
		return RateLimitResult{Allowed: false, RetryAfter: 1}
	}

	now := e.clock.Now()
	if limit > 0 && window > 0 && !e.config.RateLimit.Enabled {
		return RateLimitResult{
			Allowed:   true,
			Remaining: limit,
			ResetAt:   now.Add(window),
		}
	}

	res := e.limiter.Check(ctx, key, limit, window)
	out := RateLimitResult{
		Allowed:   res.Allowed,
		Remaining: res.Remaining,
		ResetAt:   res.ResetAt,
		Backend:   res.Backend,
		Fallback:  res.Fallback,
	}

	if out.Allowed {
		e.metricInc(MetricRateLimitAllowed)
		return out
	}

	out.RetryAfter = rate.RetryAfterSeconds(out.ResetAt, e.clock.Now())
	e.emitRateLimit(ctx, key, limit, out)
	return out
}

// RateLimitPolicy returns the configured policy for action.
func (e *Engine) RateLimitPolicy(action AuthAction) (RateLimitPolicy, bool) {
	if e == nil {
		return RateLimitPolicy{}, false
	}
	return e.config.RateLimit.Policy(action)
}

// CheckAuthActionIP applies the action policy to the client IP attached with
// WithClientIP. Requests without an IP share one "unknown" bucket. Unknown
// actions are denied.
func (e *Engine) CheckAuthActionIP(ctx context.Context, action AuthAction) RateLimitResult {
	policy, ok := e.RateLimitPolicy(action)
	if !ok {
		return e.denyUnknownAction(ctx, action)
	}
	if !policy.ByIP {
		return e.unchecked(policy)
	}

	ip := clientIPFromContext(ctx)
	if ip == "" {
		ip = unknownClientIP
	}
	return e.CheckRateLimit(ctx, e.rateLimitKey(action, DimensionIP, ip), policy.Limit, policy.Window)
}

// CheckAuthActionEmail applies the action policy to the normalized email.
// An email that normalizes to "" is not counted.
func (e *Engine) CheckAuthActionEmail(ctx context.Context, action AuthAction, email string) RateLimitResult {
	policy, ok := e.RateLimitPolicy(action)
	if !ok {
		return e.denyUnknownAction(ctx, action)
	}

	normalized := tokens.NormalizeEmail(email)
	if !policy.ByEmail || normalized == "" {
		return e.unchecked(policy)
	}
	return e.CheckRateLimit(ctx, e.rateLimitKey(action, DimensionEmail, normalized), policy.Limit, policy.Window)
}

// CheckAuthAction runs the IP check and then the email check for action.
// The first denial is returned without consuming the second counter; when
// both allow, the result with fewer remaining hits is returned.
func (e *Engine) CheckAuthAction(ctx context.Context, action AuthAction, email string) RateLimitResult {
	byIP := e.CheckAuthActionIP(ctx, action)
	if !byIP.Allowed {
		return byIP
	}

	byEmail := e.CheckAuthActionEmail(ctx, action, email)
	if !byEmail.Allowed || byEmail.Remaining < byIP.Remaining {
		return byEmail
	}
	return byIP
}

func (e *Engine) rateLimitKey(action AuthAction, dimension RateLimitDimension, value string) string {
	return buildRateLimitKey(e.config.RateLimit.KeyPrefix, action, dimension, value)
}

func (e *Engine) unchecked(policy RateLimitPolicy) RateLimitResult {
	return RateLimitResult{
		Allowed:   true,
		Remaining: policy.Limit,
		ResetAt:   e.clock.Now(),
	}
}

func (e *Engine) denyUnknownAction(ctx context.Context, action AuthAction) RateLimitResult {
	if e != nil && e.logger != nil {
		e.logger.Error("rate limit policy not found", "action", string(action))
	}
	e.metricInc(MetricRateLimitDenied)
	e.emitAudit(ctx, auditEventRateLimitDenied, false, "", "", ErrInvalidAction, func() map[string]string {
		return map[string]string{"action": string(action)}
	})
	return RateLimitResult{Allowed: false, RetryAfter: 1}
}

func (e *Engine) onCounterFallback(key string, err error) {
	e.metricInc(MetricRateLimitFallback)
	e.emitAudit(context.Background(), auditEventRateLimitFallback, false, "", "", err, func() map[string]string {
		return map[string]string{
			"key":     key,
			"backend": e.limiter.PrimaryName(),
		}
	})
}

func (e *Engine) emitRateLimit(ctx context.Context, key string, limit int, res RateLimitResult) {
	e.metricInc(MetricRateLimitDenied)
	e.emitAudit(ctx, auditEventRateLimitDenied, false, "", "", nil, func() map[string]string {
		return map[string]string{
			"key":         key,
			"limit":       strconv.Itoa(limit),
			"backend":     res.Backend,
			"retry_after": strconv.Itoa(res.RetryAfter),
		}
	})
}
