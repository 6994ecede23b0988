// Package stores provides the Redis-backed record store for single-use,
// expiring authentication tokens (email verification and password reset).
//
// # Design
//
// A record is a versioned, binary-encoded value stored under one key per
// (purpose, email) with a TTL, so writing a new token replaces the previous
// one. Delete uses a WATCH/MULTI optimistic transaction with retry on
// contention and only removes the record it was asked to remove, which makes
// the deleting caller the single winner of a concurrent consume. Hash
// comparisons use constant-time compare.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for token records.
// It does NOT generate tokens, decide expiry, or run purpose side effects;
// those belong to the authguard engine.
//
// # What this package must NOT do
//
//   - Import authguard or any sibling internal package.
//   - Store or log raw token values.
//   - Use non-constant-time comparisons for hash matching.
package stores
