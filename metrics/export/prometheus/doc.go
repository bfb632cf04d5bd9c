// Package prometheus exposes authcore counters as a prometheus.Collector.
//
// [NewExporter] wraps an [authcore.Engine]; register it on your own
// registry or mount [Exporter.Handler]. Counter names are prefixed
// authcore_ and end in _total. The one histogram is
// authcore_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
