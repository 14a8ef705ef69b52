package goToken

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goToken/internal/audit"
	"github.com/MrEthical07/goToken/internal/rate"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrEthical07/goToken"

// Engine is the application-facing facade over the token lifecycle: it
// issues, authenticates, refreshes and invalidates compact tokens, and adds
// metrics, audit events, tracing and the optional refresh throttle around
// the Manager.
//
// Engine instances are built once with a Builder and are safe for
// concurrent use.
type Engine struct {
	config    Config
	manager   *Manager
	blacklist *Blacklist
	limiter   *rate.Limiter
	audit     *audit.Dispatcher
	metrics   *Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	clock     Clock
}

// Close flushes pending audit events. The Engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the Engine counters. It is empty when
// metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

func (e *Engine) ready() bool {
	return e != nil && e.manager != nil && e.tracer != nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Manager exposes the lifecycle core.
func (e *Engine) Manager() *Manager { return e.manager }

// Blacklist returns the blacklist, or nil when it is disabled.
func (e *Engine) Blacklist() *Blacklist { return e.blacklist }

// Config returns a copy of the Engine configuration.
func (e *Engine) Config() Config { return cloneConfig(e.config) }

// Issue builds a payload from claims plus the configured defaults and signs
// it. Explicit claims win over defaults.
func (e *Engine) Issue(ctx context.Context, claims map[string]any) (Token, error) {
	if !e.ready() {
		return Token{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Issue")
	defer span.End()

	p, err := e.manager.Builder().Make(e.withAudience(claims))
	if err != nil {
		return e.issueFailed(ctx, span, err)
	}
	return e.issue(ctx, span, p)
}

// IssueForSubject issues a token whose sub and custom claims come from sub.
func (e *Engine) IssueForSubject(ctx context.Context, sub Subject, claims map[string]any) (Token, error) {
	if !e.ready() {
		return Token{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "IssueForSubject")
	defer span.End()

	p, err := e.manager.Builder().MakeForSubject(sub, e.withAudience(claims))
	if err != nil {
		return e.issueFailed(ctx, span, err)
	}
	return e.issue(ctx, span, p)
}

func (e *Engine) issue(ctx context.Context, span trace.Span, p *Payload) (Token, error) {
	token, err := e.manager.Encode(p)
	if err != nil {
		return e.issueFailed(ctx, span, err)
	}
	e.metricInc(MetricIssueSuccess)
	span.SetAttributes(payloadAttributes(p)...)
	e.emitAudit(ctx, auditEventTokenIssued, p, nil)
	return token, nil
}

func (e *Engine) issueFailed(ctx context.Context, span trace.Span, err error) (Token, error) {
	e.metricInc(MetricIssueFailure)
	recordSpanError(span, err)
	e.logger.DebugContext(ctx, "goToken: issue rejected", "error", err)
	return Token{}, err
}

// Authenticate verifies raw, applies every claim rule and consults the
// blacklist. It returns the decoded payload on success.
func (e *Engine) Authenticate(ctx context.Context, raw string) (*Payload, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Authenticate")
	defer span.End()

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() {
			e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
		}()
	}

	token, err := NewToken(raw)
	if err != nil {
		e.metricInc(MetricTokenMalformed)
		e.rejected(ctx, span, "authenticate", nil, err)
		return nil, err
	}

	p, err := e.manager.Decode(ctx, token)
	if err != nil {
		e.rejected(ctx, span, "authenticate", nil, err)
		return nil, err
	}

	e.metricInc(MetricAuthenticateSuccess)
	span.SetAttributes(payloadAttributes(p)...)
	return p, nil
}

// Check reports whether raw would pass Authenticate.
func (e *Engine) Check(ctx context.Context, raw string) bool {
	_, err := e.Authenticate(ctx, raw)
	return err == nil
}

// Refresh exchanges raw for a new token and consumes raw. When the refresh
// throttle is enabled, each subject may refresh at most MaxAttempts times
// per window; the throttle fails open if Redis is unavailable.
func (e *Engine) Refresh(ctx context.Context, raw string) (Token, error) {
	if !e.ready() {
		return Token{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Refresh")
	defer span.End()

	token, err := NewToken(raw)
	if err != nil {
		e.metricInc(MetricTokenMalformed)
		e.metricInc(MetricRefreshFailure)
		e.rejected(ctx, span, "refresh", nil, err)
		return Token{}, err
	}

	if e.limiter.Enabled() {
		p, err := e.manager.refreshable(ctx, token)
		if err != nil {
			e.metricInc(MetricRefreshFailure)
			e.rejected(ctx, span, "refresh", nil, err)
			return Token{}, err
		}
		if err := e.limiter.Allow(ctx, e.throttleKey(p)); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricRefreshRateLimited)
				e.metricInc(MetricRefreshFailure)
				recordSpanError(span, ErrRefreshRateLimited)
				e.emitAudit(ctx, auditEventRefreshThrottled, p, ErrRefreshRateLimited)
				return Token{}, ErrRefreshRateLimited
			}
			e.logger.WarnContext(ctx, "goToken: refresh throttle unavailable", "error", err)
		}
	}

	next, old, fresh, err := e.manager.refresh(ctx, token)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.rejected(ctx, span, "refresh", old, err)
		return Token{}, err
	}

	e.metricInc(MetricRefreshSuccess)
	span.SetAttributes(payloadAttributes(fresh)...)
	e.emitAudit(ctx, auditEventTokenRefreshed, old, nil, "new_token_id", fresh.JwtID())
	return next, nil
}

// Invalidate blacklists raw until it could no longer be accepted or
// refreshed.
func (e *Engine) Invalidate(ctx context.Context, raw string) error {
	return e.invalidate(ctx, raw, false)
}

// InvalidateForever blacklists raw with no expiry.
func (e *Engine) InvalidateForever(ctx context.Context, raw string) error {
	return e.invalidate(ctx, raw, true)
}

func (e *Engine) invalidate(ctx context.Context, raw string, forever bool) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Invalidate")
	defer span.End()
	span.SetAttributes(attribute.Bool("gotoken.forever", forever))

	token, err := NewToken(raw)
	if err != nil {
		e.metricInc(MetricTokenMalformed)
		e.metricInc(MetricInvalidateFailure)
		e.rejected(ctx, span, "invalidate", nil, err)
		return err
	}

	p, err := e.manager.invalidate(ctx, token, forever)
	if err != nil {
		e.metricInc(MetricInvalidateFailure)
		e.rejected(ctx, span, "invalidate", p, err)
		return err
	}

	e.metricInc(MetricInvalidateSuccess)
	span.SetAttributes(payloadAttributes(p)...)
	if forever {
		e.emitAudit(ctx, auditEventTokenInvalidated, p, nil, "forever", "true")
	} else {
		e.emitAudit(ctx, auditEventTokenInvalidated, p, nil)
	}
	return nil
}

// rejected records a failed operation: kind counters, a store error log
// line when the blacklist backend failed, the span status and an audit
// event.
func (e *Engine) rejected(ctx context.Context, span trace.Span, op string, p *Payload, err error) {
	switch kind, _ := KindOf(err); {
	case kind == KindTokenExpired:
		e.metricInc(MetricTokenExpired)
	case kind == KindTokenBlacklisted:
		e.metricInc(MetricTokenBlacklisted)
	case isStoreFailure(err):
		e.metricInc(MetricBlacklistError)
		e.logger.ErrorContext(ctx, "goToken: blacklist store failure", "op", op, "error", err)
	}
	if op == "authenticate" {
		e.metricInc(MetricAuthenticateFailure)
	}
	recordSpanError(span, err)
	e.emitAudit(ctx, auditEventTokenRejected, p, err, "op", op)
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, p *Payload, err error, metadata ...string) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: e.clock.Now().UTC(),
		EventType: eventType,
		IP:        clientIPFromContext(ctx),
		Success:   err == nil,
	}
	if p != nil {
		event.Subject = p.Subject()
		event.TokenID = p.JwtID()
		event.Issuer = p.Issuer()
	}
	if err != nil {
		// Only the kind goes out; messages may echo claim values.
		if kind, ok := KindOf(err); ok {
			event.Error = kind.String()
		} else if errors.Is(err, ErrRefreshRateLimited) {
			event.Error = "rate_limited"
		} else {
			event.Error = "internal"
		}
	}
	if len(metadata) > 1 {
		event.Metadata = make(map[string]string, len(metadata)/2)
		for i := 0; i+1 < len(metadata); i += 2 {
			event.Metadata[metadata[i]] = metadata[i+1]
		}
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) withAudience(claims map[string]any) map[string]any {
	aud := e.config.Token.Audience
	if aud == "" {
		return claims
	}
	if _, ok := claims[ClaimAudience]; ok {
		return claims
	}
	out := make(map[string]any, len(claims)+1)
	for k, v := range claims {
		out[k] = v
	}
	out[ClaimAudience] = aud
	return out
}

func (e *Engine) throttleKey(p *Payload) string {
	if sub := p.Subject(); sub != "" {
		return "sub:" + sub
	}
	if e.blacklist != nil {
		return "key:" + e.blacklist.Key(p)
	}
	return "h:" + payloadFingerprint(p.ToMap())
}

func (e *Engine) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return e.tracer.Start(ctx, "goToken."+op, trace.WithSpanKind(trace.SpanKindInternal))
}

func payloadAttributes(p *Payload) []attribute.KeyValue {
	if p == nil {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, 2)
	if sub := p.Subject(); sub != "" {
		attrs = append(attrs, attribute.String("gotoken.subject", sub))
	}
	if jti := p.JwtID(); jti != "" {
		attrs = append(attrs, attribute.String("gotoken.jti", jti))
	}
	return attrs
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	desc := "internal"
	if kind, ok := KindOf(err); ok {
		desc = kind.String()
	} else if errors.Is(err, ErrRefreshRateLimited) {
		desc = "rate_limited"
	}
	span.SetStatus(codes.Error, desc)
}
