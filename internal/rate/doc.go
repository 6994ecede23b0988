// Package rate implements the fixed-window limiter behind authguard's
// authentication endpoints.
//
// # Backends
//
//   - [RedisCounter]: INCR + PTTL + PEXPIRE-if-unset in one Lua script.
//   - [RESTCounter]: the same batch as an HTTP pipeline call against an
//     Upstash-compatible REST endpoint.
//   - [Memory]: per-process map used when no distributed counter is
//     configured or the configured one fails.
//
// # Window semantics
//
// Fixed window: the TTL (or in-memory resetAt) is set on the first hit only
// and never extended by later hits.
//
// # Failure policy
//
// [Limiter.Check] never returns an error. A distributed failure is logged and
// the call is answered by [Memory] instead, so limiting degrades to
// per-instance precision rather than disappearing.
//
// # What this package must NOT do
//
//   - Decide key layout for auth actions (the engine owns that).
//   - Be imported outside the authguard module.
package rate
