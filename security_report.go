package goToken

import (
	"strings"
	"time"
)

// SecurityReport summarizes the effective token posture of an Engine.
type SecurityReport struct {
	ProductionMode        bool
	SigningAlgorithm      string
	TTL                   time.Duration
	Leeway                time.Duration
	MaxRefreshPeriod      time.Duration
	NonExpiringTokens     bool
	RequiredClaims        []string
	AudienceEnforced      bool
	SubjectLockEnabled    bool
	BlacklistEnabled      bool
	BlacklistGracePeriod  time.Duration
	RefreshThrottleActive bool
	AuditEnabled          bool
	MetricsEnabled        bool
	LintWarnings          []string
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		ProductionMode:        e.config.Security.ProductionMode,
		SigningAlgorithm:      strings.ToLower(e.config.Signing.Method),
		TTL:                   e.config.Token.TTL,
		Leeway:                e.config.Token.Leeway,
		MaxRefreshPeriod:      e.config.Token.MaxRefreshPeriod,
		NonExpiringTokens:     e.config.Token.TTL == 0,
		RequiredClaims:        append([]string(nil), e.config.Token.RequiredClaims...),
		AudienceEnforced:      e.config.Token.Audience != "",
		SubjectLockEnabled:    e.config.Token.LockSubject,
		BlacklistEnabled:      e.config.Blacklist.Enabled,
		BlacklistGracePeriod:  e.config.Blacklist.GracePeriod,
		RefreshThrottleActive: e.limiter.Enabled(),
		AuditEnabled:          e.audit != nil,
		MetricsEnabled:        e.metrics.Enabled(),
		LintWarnings:          e.config.Lint().Codes(),
	}
}
