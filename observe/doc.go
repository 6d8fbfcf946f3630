// Package observe provides telemetry for the data-fetching layer: OpenTelemetry
// tracing and metrics plus a structured JSON logger, all configured through a
// single Observer.
package observe
