package middleware

import (
	"net/http"

	"github.com/MrEthical07/authguard"
	"github.com/go-chi/httprate"
)

// ClientIP attaches the caller IP to the request context. With trustProxy
// the IP comes from True-Client-IP, X-Real-IP or X-Forwarded-For; without it
// only RemoteAddr is used. Enable trustProxy only behind a proxy that
// overwrites those headers.
func ClientIP(trustProxy bool) func(http.Handler) http.Handler {
	keyFn := httprate.KeyByIP
	if trustProxy {
		keyFn = httprate.KeyByRealIP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, err := keyFn(r)
			if err != nil || ip == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(authguard.WithClientIP(r.Context(), ip)))
		})
	}
}
