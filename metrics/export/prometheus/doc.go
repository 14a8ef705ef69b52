// Package prometheus exposes goToken Engine metrics as a client_golang
// Collector.
//
// [NewCollector] wraps an Engine (or any source with the same two methods)
// and reports every counter as gotoken_*_total plus the
// gotoken_authenticate_latency_seconds histogram. Register it on your own
// registry, or use [Collector.Handler] for a self-contained /metrics
// endpoint.
//
// The collector reads snapshots only; it never mutates the Engine.
package prometheus
