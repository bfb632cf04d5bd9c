// Package internal contains helper utilities that are intentionally private to authcore,
// mainly secure random generation and token fingerprinting.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - rate: Redis-backed sliding-window rate limiter with block keys
//   - stores: short-lived Redis records (email verification codes)
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
