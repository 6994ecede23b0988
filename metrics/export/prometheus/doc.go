// Package prometheus renders authguard metrics in Prometheus text exposition
// format.
//
// [NewExporter] reads an authguard.Engine and exposes an [http.Handler].
// Series are prefixed authguard_; outcome counters share a family and carry
// a result or outcome label. The single histogram is
// authguard_counter_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
