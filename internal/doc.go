// Package internal holds the implementation packages behind the public
// authguard API.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - clock: injectable time source (System, Manual)
//   - metrics: lock-free counters and the counter latency histogram
//   - rate: fixed-window counters (Redis script, REST pipeline, in-memory fallback) and the Limiter that chains them
//   - stores: Redis token records with single-winner delete
//   - tokens: raw token generation, hashing and email normalization
//
// # What this package must NOT do
//
//   - Export types that appear in the public authguard API other than
//     through root-package aliases.
//   - Be imported by any package outside the authguard module.
package internal
