// Package telemetry provides Prometheus metrics and OpenTelemetry tracing
// for the decision pipeline. Metric label sets carry only closed-vocabulary
// values (role, intent, reason); prompt text never reaches an exporter.
package telemetry
