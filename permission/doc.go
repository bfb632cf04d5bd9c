// Package permission turns the flat permission lists stored on roles into
// fixed 64-bit masks.
//
// A [Registry] assigns each permission name a stable bit. A [RoleManager]
// resolves every role once, at load time, into a [Mask64]; the "*" wildcard
// expands there to every registered bit plus the reserved root bit, so
// request-time checks are a single AND.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import authcore, jwt, or session.
//   - Reinterpret wildcards per request.
package permission
