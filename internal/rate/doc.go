// Package rate provides the Redis-backed refresh throttle used by the Engine.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys are
// "<prefix>:rf:<subject>".
//
// # What this package must NOT do
//
//   - Decide which subject a token belongs to (the Engine does that).
//   - Be imported outside the goToken module.
package rate
