// Package telemetry provides observability instrumentation for backendex:
// structured logging (zerolog), Prometheus metrics, and OpenTelemetry
// tracing for export runs.
//
// Metrics are registered on a private registry and only served over HTTP in
// watch mode, where the process lives long enough to be scraped. Tracing is
// disabled by default and exports to stdout or OTLP when enabled.
package telemetry
