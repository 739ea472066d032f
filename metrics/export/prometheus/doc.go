// Package prometheus serves the engine in Prometheus text exposition format.
//
// Two kinds of series are written. Counters and the validate latency
// histogram come from Engine.MetricsSnapshot and are omitted while engine
// metrics are disabled. The gauges adminauth_requests{status},
// adminauth_active_sessions and adminauth_state_up are read from the store
// on every scrape, bounded by [DefaultStateTimeout].
//
// The exporter keeps no registry of its own: callers mount Handler on their
// router, usually at /metrics.
package prometheus
