package otel

import (
	"context"
	"sync"
	"testing"

	goToken "github.com/MrEthical07/goToken"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	counters map[goToken.MetricID]uint64
	buckets  []uint64
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goToken.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goToken.MetricsSnapshot{
		Counters:   make(map[goToken.MetricID]uint64, len(f.counters)),
		Histograms: map[goToken.MetricID][]uint64{},
	}
	for k, v := range f.counters {
		out.Counters[k] = v
	}
	if f.buckets != nil {
		out.Histograms[goToken.MetricAuthenticateLatency] = append([]uint64(nil), f.buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReaderMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			}
		}
	}
	return out
}

func TestExporterObservesSnapshot(t *testing.T) {
	reader, provider := newReaderMeter()
	src := &fakeSource{
		counters: map[goToken.MetricID]uint64{
			goToken.MetricRefreshSuccess: 3,
		},
		buckets: []uint64{1, 1, 1, 1, 1, 1, 1, 1},
		dropped: 4,
	}

	exp, err := NewFromSource(provider.Meter("gotoken-test"), src)
	if err != nil {
		t.Fatalf("NewFromSource failed: %v", err)
	}
	defer exp.Close()

	got := collect(t, reader)
	if got["gotoken_refresh_success_total"] != 3 {
		t.Fatalf("expected refresh_success 3, got %d", got["gotoken_refresh_success_total"])
	}
	if got["gotoken_audit_dropped_total"] != 4 {
		t.Fatalf("expected audit_dropped 4, got %d", got["gotoken_audit_dropped_total"])
	}
	if got["gotoken_authenticate_latency_seconds_bucket_le_0_005"] != 3 {
		t.Fatalf("expected cumulative bucket 3, got %d", got["gotoken_authenticate_latency_seconds_bucket_le_0_005"])
	}
	if got["gotoken_authenticate_latency_seconds_count"] != 8 {
		t.Fatalf("expected count 8, got %d", got["gotoken_authenticate_latency_seconds_count"])
	}
}

func TestExporterStopsAfterClose(t *testing.T) {
	reader, provider := newReaderMeter()
	src := &fakeSource{counters: map[goToken.MetricID]uint64{goToken.MetricIssueSuccess: 1}}

	exp, err := NewFromSource(provider.Meter("gotoken-test"), src)
	if err != nil {
		t.Fatalf("NewFromSource failed: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if got := collect(t, reader); got["gotoken_issue_success_total"] != 0 {
		t.Fatalf("expected no observations after Close, got %d", got["gotoken_issue_success_total"])
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReaderMeter()

	if _, err := NewFromSource(provider.Meter("gotoken-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := New(provider.Meter("gotoken-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil engine, got %v", err)
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newReaderMeter()
	src := &fakeSource{counters: map[goToken.MetricID]uint64{goToken.MetricIssueSuccess: 1}}

	exp, err := NewFromSource(provider.Meter("gotoken-test"), src)
	if err != nil {
		t.Fatalf("NewFromSource failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.counters[goToken.MetricIssueSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
