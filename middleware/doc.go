// Package middleware exposes net/http adapters for authcore.Engine token
// validation in JWT-only and strict modes, plus permission checks.
//
// # Guards
//
//   - [Guard] validates with an explicit mode; [authcore.ModeInherit] uses the
//     Engine's configured mode.
//   - [RequireJWTOnly] verifies the token only, no Redis call.
//   - [RequireStrict] also requires a live session.
//   - [RequirePermission] must run after a guard.
//
// Each guard reads the Authorization header, calls Engine.Validate and stores
// the [authcore.AuthResult] in the request context.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access Redis or the directory.
//   - Leak why a token was rejected beyond the error code.
package middleware
