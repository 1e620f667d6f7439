// Package telemetry provides OpenTelemetry initialization and helpers
// for distributed tracing across the brainblog server, worker and CLI.
//
// Traces, logs and metrics are exported over OTLP/HTTP. Pipeline stages open
// one span each under the "brainblog/pipeline" tracer.
package telemetry
