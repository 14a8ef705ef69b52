// Package otel publishes goToken Engine metrics through an OpenTelemetry
// Meter.
//
// Counters become Int64ObservableCounter instruments named like their
// Prometheus twins. The latency histogram is published as one cumulative
// gauge per bucket plus a count gauge, since the Engine keeps pre-bucketed
// counts rather than raw samples. One callback reads the Engine snapshot per
// collection cycle. Callers own the MeterProvider.
package otel
