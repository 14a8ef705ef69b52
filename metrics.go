package goToken

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one Engine counter or histogram.
type MetricID uint16

const (
	// MetricIssueSuccess counts tokens issued.
	MetricIssueSuccess MetricID = iota
	// MetricIssueFailure counts issue calls rejected by claim construction or validation.
	MetricIssueFailure
	// MetricAuthenticateSuccess counts tokens accepted by Authenticate.
	MetricAuthenticateSuccess
	// MetricAuthenticateFailure counts tokens rejected by Authenticate for any reason.
	MetricAuthenticateFailure
	// MetricTokenExpired counts rejections caused by exp, or by iat beyond the refresh period.
	MetricTokenExpired
	// MetricTokenBlacklisted counts rejections caused by the blacklist.
	MetricTokenBlacklisted
	// MetricTokenMalformed counts tokens that failed the wire-shape check.
	MetricTokenMalformed
	// MetricRefreshSuccess counts completed refreshes.
	MetricRefreshSuccess
	// MetricRefreshFailure counts failed refreshes, throttled ones included.
	MetricRefreshFailure
	// MetricRefreshRateLimited counts refreshes rejected by the throttle.
	MetricRefreshRateLimited
	// MetricInvalidateSuccess counts tokens added to the blacklist.
	MetricInvalidateSuccess
	// MetricInvalidateFailure counts failed invalidations.
	MetricInvalidateFailure
	// MetricBlacklistError counts blacklist store failures.
	MetricBlacklistError
	// MetricAuthenticateLatency is the Authenticate latency histogram.
	MetricAuthenticateLatency
	metricIDCount
)

// LatencyBounds are the inclusive upper bounds of the latency histogram
// buckets. A final overflow bucket follows the last bound.
var LatencyBounds = [...]time.Duration{
	time.Millisecond,
	2500 * time.Microsecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
}

const latencyBucketCount = len(LatencyBounds) + 1

// slot keeps each counter on its own cache line.
type slot struct {
	n atomic.Uint64
	_ [56]byte
}

type latency struct {
	buckets [latencyBucketCount]atomic.Uint64
	sum     atomic.Int64
}

// Metrics is a fixed set of lock-free counters plus the Authenticate latency
// histogram. A nil or disabled Metrics ignores every update.
type Metrics struct {
	on        bool
	latencyOn bool
	slots     [metricIDCount]slot
	auth      latency
}

// MetricsSnapshot is a point-in-time copy of all counters. Histograms holds
// non-cumulative bucket counts; LatencySum the total observed duration per
// histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
	LatencySum map[MetricID]time.Duration
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		on:        cfg.Enabled,
		latencyOn: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.on
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.latencyOn
}

func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount || id == MetricAuthenticateLatency {
		return
	}
	m.slots[id].n.Add(1)
}

// Observe records d. Only MetricAuthenticateLatency carries a histogram;
// other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricAuthenticateLatency {
		return
	}
	m.auth.buckets[latencyBucket(d)].Add(1)
	m.auth.sum.Add(int64(d))
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.slots[id].n.Load()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
		LatencySum: map[MetricID]time.Duration{},
	}
	if !m.Enabled() {
		return s
	}

	for id := range metricIDCount {
		if id != MetricAuthenticateLatency {
			s.Counters[id] = m.slots[id].n.Load()
		}
	}
	if m.latencyOn {
		counts := make([]uint64, latencyBucketCount)
		for i := range counts {
			counts[i] = m.auth.buckets[i].Load()
		}
		s.Histograms[MetricAuthenticateLatency] = counts
		s.LatencySum[MetricAuthenticateLatency] = time.Duration(m.auth.sum.Load())
	}
	return s
}

func latencyBucket(d time.Duration) int {
	for i, le := range LatencyBounds {
		if d <= le {
			return i
		}
	}
	return len(LatencyBounds)
}
