// Package stores provides Redis-backed, short-lived record stores for
// authentication flows. Today that is the email verification code store.
//
// # Design
//
// A verification record is a hash keyed by the lowercased email holding the
// SHA-256 of the code, an attempt counter and the creation time. Saving a
// record replaces any previous one, which resets both the TTL and the
// counter. Verification runs as one Lua script: a mismatch increments the
// counter in place, so the remaining TTL is preserved, and a match deletes
// the record so the same code never verifies twice.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for transient
// challenge records. It does NOT generate codes, enforce rate limits, or
// make authentication decisions; the Engine does.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Log or store plaintext codes.
package stores
