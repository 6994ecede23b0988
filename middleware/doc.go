// Package middleware adapts authguard.Engine rate limiting to net/http.
//
// # Middleware
//
//   - [ClientIP] resolves the caller IP and attaches it with
//     authguard.WithClientIP.
//   - [RateLimit] enforces the per-IP policy of one auth action.
//   - [CheckEmail] enforces the per-email policy from inside a handler,
//     once the request body has been decoded.
//
// Denied requests get HTTP 429 with a Retry-After header written by
// [WriteRateLimited].
//
// # What this package must NOT do
//
//   - Count requests itself (the Engine owns every counter).
//   - Issue or consume tokens.
package middleware
