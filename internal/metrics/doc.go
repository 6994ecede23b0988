// Package metrics provides lock-free counters and latency histograms for
// authguard observability.
//
// # Design
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically via [sync/atomic.AddUint64]. The single histogram tracks
// distributed rate-limit counter latency in 8 fixed buckets (<=5ms ... +Inf).
// Both are allocation-free on the write path.
//
// # Architecture boundaries
//
// This package owns metric storage and snapshot creation. Metric export
// (Prometheus, OTel) lives in metrics/export/ and reads Snapshot values.
//
// # What this package must NOT do
//
//   - Perform I/O or network calls.
//   - Import authguard or any sibling package.
//   - Expose global metric registries.
package metrics
