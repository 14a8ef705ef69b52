package internaldefs

import (
	goToken "github.com/MrEthical07/goToken"
)

// Namespace prefixes every exported series.
const Namespace = "gotoken"

type CounterDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   goToken.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goToken.MetricIssueSuccess, Name: "gotoken_issue_success_total", Help: "Tokens issued."},
	{ID: goToken.MetricIssueFailure, Name: "gotoken_issue_failure_total", Help: "Issue calls rejected by claim rules."},
	{ID: goToken.MetricAuthenticateSuccess, Name: "gotoken_authenticate_success_total", Help: "Tokens accepted by Authenticate."},
	{ID: goToken.MetricAuthenticateFailure, Name: "gotoken_authenticate_failure_total", Help: "Tokens rejected by Authenticate."},
	{ID: goToken.MetricTokenExpired, Name: "gotoken_token_expired_total", Help: "Rejections caused by expiry."},
	{ID: goToken.MetricTokenBlacklisted, Name: "gotoken_token_blacklisted_total", Help: "Rejections caused by the blacklist."},
	{ID: goToken.MetricTokenMalformed, Name: "gotoken_token_malformed_total", Help: "Tokens with a malformed wire shape."},
	{ID: goToken.MetricRefreshSuccess, Name: "gotoken_refresh_success_total", Help: "Completed refreshes."},
	{ID: goToken.MetricRefreshFailure, Name: "gotoken_refresh_failure_total", Help: "Failed refreshes."},
	{ID: goToken.MetricRefreshRateLimited, Name: "gotoken_refresh_rate_limited_total", Help: "Refreshes rejected by the throttle."},
	{ID: goToken.MetricInvalidateSuccess, Name: "gotoken_invalidate_success_total", Help: "Tokens added to the blacklist."},
	{ID: goToken.MetricInvalidateFailure, Name: "gotoken_invalidate_failure_total", Help: "Failed invalidations."},
	{ID: goToken.MetricBlacklistError, Name: "gotoken_blacklist_error_total", Help: "Blacklist store failures."},
}

var HistogramDefs = []HistogramDef{
	{ID: goToken.MetricAuthenticateLatency, Name: "gotoken_authenticate_latency_seconds", Help: "Authenticate latency."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const (
	AuditDroppedName = "gotoken_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramBounds are goToken.LatencyBounds in seconds, +Inf excluded.
var HistogramBounds = func() []float64 {
	out := make([]float64, len(goToken.LatencyBounds))
	for i, d := range goToken.LatencyBounds {
		out[i] = d.Seconds()
	}
	return out
}()

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
// publish one instrument per bucket.
var HistogramBoundSuffix = []string{
	"0_001",
	"0_0025",
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the Engine bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
