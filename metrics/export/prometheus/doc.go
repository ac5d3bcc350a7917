// Package prometheus renders hybridAuth engine metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [hybridAuth.Engine] and exposes an
// [http.Handler]. Counter names are prefixed hybridauth_*_total and the single
// histogram is hybridauth_login_latency_seconds. When the source is an Engine
// the exporter also emits the current auth state and the session conversion
// rate as gauges.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
