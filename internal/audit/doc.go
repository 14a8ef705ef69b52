// Package audit relays token lifecycle events to caller-supplied sinks.
//
// # Components
//
//   - [Sink] consumes events (channel, JSON lines, slog, no-op).
//   - [Dispatcher] is a buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event] records the event type, subject, token id, client IP and outcome.
//
// Events never carry the compact token or signing material. The Engine decides
// which events to emit; this package only buffers and delivers them.
package audit
