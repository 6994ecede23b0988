package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/MrEthical07/authguard"
)

type rateLimitContextKey struct{}

// RateLimitResultFromContext returns the result recorded by RateLimit.
func RateLimitResultFromContext(ctx context.Context) (authguard.RateLimitResult, bool) {
	res, ok := ctx.Value(rateLimitContextKey{}).(authguard.RateLimitResult)
	return res, ok
}

// RateLimit applies the per-IP policy of action. Place it after ClientIP.
// A nil engine rejects every request.
func RateLimit(engine *authguard.Engine, action authguard.AuthAction) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteRateLimited(w, authguard.RateLimitResult{RetryAfter: 1})
				return
			}

			res := engine.CheckAuthActionIP(r.Context(), action)
			if !res.Allowed {
				WriteRateLimited(w, res)
				return
			}

			ctx := context.WithValue(r.Context(), rateLimitContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CheckEmail applies the per-email policy of action. It writes the 429
// response and returns false when the request must stop.
func CheckEmail(w http.ResponseWriter, r *http.Request, engine *authguard.Engine, action authguard.AuthAction, email string) bool {
	if engine == nil {
		WriteRateLimited(w, authguard.RateLimitResult{RetryAfter: 1})
		return false
	}

	res := engine.CheckAuthActionEmail(r.Context(), action, email)
	if !res.Allowed {
		WriteRateLimited(w, res)
		return false
	}
	return true
}

// WriteRateLimited writes HTTP 429 with Retry-After set to res.RetryAfter
// (at least 1 second) and a JSON error body.
func WriteRateLimited(w http.ResponseWriter, res authguard.RateLimitResult) {
	retry := res.RetryAfter
	if retry < 1 {
		retry = 1
	}

	h := w.Header()
	h.Set("Retry-After", strconv.Itoa(retry))
	h.Set("X-RateLimit-Remaining", "0")
	if !res.ResetAt.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	}
	h.Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "rate limit exceeded. please try again later",
	})
}
