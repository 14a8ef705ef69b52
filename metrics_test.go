package goToken

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricIssueSuccess)

	if got := m.Value(MetricIssueSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.Counters)
	}
}

func TestMetricsParallelUpdatesAreNotLost(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	const workers, rounds = 16, 5000
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				m.Inc(MetricRefreshSuccess)
				m.Observe(MetricAuthenticateLatency, 7*time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricRefreshSuccess); got != workers*rounds {
		t.Fatalf("lost counter updates: %d", got)
	}
	if got := m.Snapshot().Histograms[MetricAuthenticateLatency][3]; got != workers*rounds {
		t.Fatalf("lost histogram updates: %d", got)
	}
}

func TestMetricsHistogramBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	observations := []time.Duration{
		500 * time.Microsecond,
		2 * time.Millisecond,
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		time.Second,
	}
	for _, d := range observations {
		m.Observe(MetricAuthenticateLatency, d)
	}
	m.Observe(MetricIssueSuccess, time.Millisecond)

	buckets := m.Snapshot().Histograms[MetricAuthenticateLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricAuthenticateSuccess)
	m.Inc(MetricTokenBlacklisted)
	m.Inc(MetricTokenBlacklisted)
	m.Observe(MetricAuthenticateLatency, time.Millisecond)

	snap := m.Snapshot()
	if snap.Counters[MetricAuthenticateSuccess] != 1 || snap.Counters[MetricTokenBlacklisted] != 2 {
		t.Fatalf("unexpected counters %v", snap.Counters)
	}
	if _, ok := snap.Histograms[MetricAuthenticateLatency]; ok {
		t.Fatal("histogram must be absent unless latency histograms are enabled")
	}
	if _, ok := snap.Counters[MetricAuthenticateLatency]; ok {
		t.Fatal("histogram id must not appear as a counter")
	}
}

func TestMetricsLatencySumAndBoundaries(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricAuthenticateLatency, time.Millisecond)
	m.Observe(MetricAuthenticateLatency, time.Millisecond+time.Nanosecond)
	m.Observe(MetricAuthenticateLatency, 3*time.Second)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricAuthenticateLatency]
	if buckets[0] != 1 || buckets[1] != 1 || buckets[len(buckets)-1] != 1 {
		t.Fatalf("unexpected buckets %v", buckets)
	}
	want := 3*time.Second + 2*time.Millisecond + time.Nanosecond
	if got := snap.LatencySum[MetricAuthenticateLatency]; got != want {
		t.Fatalf("expected sum %v, got %v", want, got)
	}
}

func TestNilMetricsIsInert(t *testing.T) {
	var m *Metrics
	m.Inc(MetricIssueSuccess)
	m.Observe(MetricAuthenticateLatency, time.Millisecond)
	if m.Enabled() || m.Value(MetricIssueSuccess) != 0 {
		t.Fatal("nil metrics must be inert")
	}
	if snap := m.Snapshot(); snap.Counters == nil || snap.Histograms == nil {
		t.Fatal("snapshot maps must be non-nil")
	}
}
