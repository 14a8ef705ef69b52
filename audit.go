package goToken

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/goToken/internal/audit"
)

// AuditEvent is one token lifecycle record. Events carry the subject and
// jti of the token involved, never the compact token itself.
type AuditEvent = audit.Event

// AuditSink receives audit events from the Engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops every event.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers events into a channel readable through Events.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// SlogSink writes events through a structured logger.
type SlogSink = audit.SlogSink

const (
	auditEventTokenIssued      = "token_issued"
	auditEventTokenRefreshed   = "token_refreshed"
	auditEventTokenInvalidated = "token_invalidated"
	auditEventTokenRejected    = "token_rejected"
	auditEventRefreshThrottled = "refresh_throttled"
)

func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return audit.NewJSONWriterSink(w) }

func NewSlogSink(logger *slog.Logger) *SlogSink { return audit.NewSlogSink(logger) }
