// Package redisstore provides the Redis-backed blacklist store and the compact
// binary encoding of blacklist entries.
//
// # Atomicity
//
// Entries are written with SET NX and a key TTL, so the first invalidation of
// a token wins and Redis purges the entry once it can no longer matter.
//
// # What this package must NOT do
//
//   - Interpret tokens or decide whether an entry is in effect. The grace
//     period logic lives in goToken.Blacklist.
//   - Touch keys outside its prefix.
package redisstore
