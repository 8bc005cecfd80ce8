// Package telemetry provides structured logging, metrics, and distributed
// tracing for the provisio resolution engine.
//
// Logging wraps zerolog with child loggers carrying resolution context
// (run ID, repository, feature, PID). Metrics are Prometheus collectors for
// repository loads, feature resolution, directive output, and warnings.
// Tracing sets up an OpenTelemetry provider with stdout or OTLP exporters
// and spans the load, collect, and resolve phases.
//
// All three are optional: a nop logger and nil metrics/tracer are safe to
// use, so library consumers only pay for what they wire.
package telemetry
