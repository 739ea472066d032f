// Package otel publishes engine metrics through an OpenTelemetry Meter.
//
// Engine counters become Int64ObservableCounters and the validate latency
// histogram becomes one Int64ObservableGauge per cumulative bucket. The store
// gauges adminauth_requests (with a status attribute),
// adminauth_active_sessions and adminauth_state_up are read through
// Engine.StateSnapshot in the same callback, so one collection makes one
// store read.
//
// The caller owns the MeterProvider.
package otel
