// Package authguard provides the security core behind authentication
// endpoints: a fixed-window rate limiter with a distributed primary counter
// and an in-memory fallback, and a lifecycle manager for single-use, expiring,
// hashed email-verification and password-reset tokens.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authguard is the public surface. It exposes [Engine], [Builder], [Config], typed results
// ([RateLimitResult], [ConsumeStatus]) and the collaborator interfaces ([TokenStore],
// [UserProvider], [Mailer]). Counter backends, the Redis record encoding, audit dispatch
// and metric storage live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Return errors for security outcomes. Denials, invalid and expired tokens are values.
//   - Persist or log raw tokens. Only SHA-256 hashes reach storage.
//   - Fail a request because the distributed rate-limit counter is down.
//   - Import any sub-package that re-imports authguard (no import cycles).
//
// # Performance contract
//
// CheckRateLimit performs at most one distributed round trip and never blocks on the
// fallback map longer than one map operation. Token operations perform a bounded number
// of storage round trips and hold no locks across I/O.
package authguard
