// Package rate provides the Redis-backed sliding-window rate limiter used by
// login, verification resend and password reset flows.
//
// # Window semantics
//
// Each key owns a sorted set of attempt timestamps in milliseconds taken
// from the Redis TIME command, so every worker shares one clock. A check
// trims entries older than the window, counts the rest and either records
// the attempt or denies it. When a policy carries a block duration, the
// denial also writes a block key that short-circuits later checks until it
// expires, independent of the window. All of this runs in one Lua script.
//
// Keys: <prefix>:rate_limit:{<key>} and <prefix>:rate_limit:{<key>}:blocked.
//
// # Failure mode
//
// With FailOpen set, a backend error yields an allowed result plus the
// wrapped error so callers can log it without locking users out.
//
// # What this package must NOT do
//
//   - Decide which keys or policies a flow uses (the Engine does).
//   - Be imported outside the authcore module.
package rate
