// Package otel provides an OpenTelemetry observer for schedulers. It adds
// span events (worker created/released, action cancelled, action panicked)
// to the span carried by the scheduler's base context.
package otel
