package goToken

import (
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks a LintWarning.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintWarn:
		return "warn"
	case LintHigh:
		return "high"
	default:
		return "info"
	}
}

// LintWarning is one configuration smell. Lint warnings never block Build.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered output of Config.Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, len(r))
	for i, w := range r {
		out[i] = w.Code
	}
	return out
}

// AtLeast keeps warnings with severity >= min.
func (r LintResult) AtLeast(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

const (
	lintLeewayMax       = 30 * time.Second
	lintTTLMax          = time.Hour
	lintRefreshMax      = 30 * 24 * time.Hour
	lintGracePeriodMax  = time.Minute
	lintHMACRecommended = 64
)

// Lint reports settings that are valid but risky. Call it after Validate.
func (c Config) Lint() LintResult {
	var out LintResult
	add := func(code string, sev LintSeverity, format string, args ...any) {
		out = append(out, LintWarning{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	if c.Token.Leeway > lintLeewayMax {
		add("leeway_large", LintWarn, "leeway %s exceeds %s", c.Token.Leeway, lintLeewayMax)
	}
	if c.Token.TTL == 0 {
		add("non_expiring_tokens", LintHigh, "tokens are issued without exp")
	} else if c.Token.TTL > lintTTLMax {
		add("ttl_long", LintWarn, "token ttl %s exceeds %s", c.Token.TTL, lintTTLMax)
	}
	if c.Token.MaxRefreshPeriod > lintRefreshMax {
		add("refresh_window_long", LintWarn, "refresh window %s exceeds %s", c.Token.MaxRefreshPeriod, lintRefreshMax)
	}
	if !c.Blacklist.Enabled {
		add("blacklist_disabled", LintHigh, "tokens cannot be invalidated and refresh does not consume the old token")
	}
	if c.Blacklist.GracePeriod > lintGracePeriodMax {
		add("grace_period_large", LintWarn, "invalidated tokens stay usable for %s", c.Blacklist.GracePeriod)
	}
	if c.Token.MaxRefreshPeriod > 0 && !c.Refresh.ThrottleEnabled {
		add("refresh_throttle_disabled", LintInfo, "refresh is not rate limited per subject")
	}
	if strings.HasPrefix(strings.ToLower(c.Signing.Method), "hs") && len(c.Signing.PrivateKey) > 0 && len(c.Signing.PrivateKey) < lintHMACRecommended {
		add("hmac_key_short", LintInfo, "hmac secret is %d bytes, %d recommended", len(c.Signing.PrivateKey), lintHMACRecommended)
	}
	if c.Security.ProductionMode && c.Audit.Enabled && c.Audit.DropIfFull {
		add("audit_drops_events", LintInfo, "audit events are dropped when the buffer is full")
	}
	return out
}
