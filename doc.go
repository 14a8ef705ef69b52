// Package goToken implements the lifecycle of compact signed tokens: issue,
// decode with claim checks, refresh and invalidation through a blacklist.
//
// The core is three explicitly wired parts. [PayloadBuilder] turns claim
// values into an immutable [Payload]; [Manager] signs and verifies payloads
// through a [TokenCodec] and consults a [Revoker]; [Blacklist] records
// invalidated tokens in a [BlacklistStore] with a TTL that outlives every
// window in which the token could still be accepted or refreshed. Time comes
// from an injected [Clock].
//
// [Builder] assembles the same parts into an [Engine] from a [Config] and adds
// the operational layer: metrics, audit events, tracing spans and an
// optional Redis refresh throttle. Engine methods are safe for concurrent use.
//
// # Architecture boundaries
//
// Storage backends live in storage/ and import this package, never the
// reverse, so the Builder takes a store rather than creating one. HTTP
// adapters live in middleware, exporters in metrics/export.
//
// # What this package must NOT do
//
//   - Log from the core; Manager, Blacklist and validators return errors.
//   - Put token strings or claim values in audit events or span status.
//   - Let a refresh succeed when the old token could not be invalidated.
package goToken
