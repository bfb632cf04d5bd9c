// Package session provides the Redis-backed session cache with sliding
// expiry and a per-user index for fan-out revocation.
//
// # Layout
//
// Each session is a hash at <prefix>:session:<sid> holding the JSON
// snapshot, the owning user id, the fixed TTL in milliseconds and the last
// access time taken from the Redis clock. <prefix>:user_sessions:<uid> is a
// set of session ids with its own, longer TTL.
//
// A session hash and its user index sit in different cluster slots, so no
// script touches both. The read that slides the TTL is one Lua script on
// the session key; Delete and RevokeAll update the index with separate
// commands, and Put uses one MULTI per slot. A stale index member left by
// an interrupted delete is harmless: ActiveSessionIDs skips members whose
// session key is gone.
//
// # Architecture boundaries
//
// This package owns cache layout only. It does NOT interpret tokens,
// evaluate permissions, or decide whether a session is authoritative. The
// directory remains the source of truth.
//
// # What this package must NOT do
//
//   - Import authcore, jwt, or permission (no upward imports).
//   - Store refresh tokens or any other bearer credential in a snapshot.
package session
