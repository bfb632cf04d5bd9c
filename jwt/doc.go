// Package jwt is the token codec: it issues and verifies HS256 access,
// refresh, email-verification and password-reset tokens.
//
// Access and refresh tokens share a session id. Refresh tokens and the
// single-purpose action tokens are signed with keys derived from the access
// secret through HKDF-SHA256, so each key only ever verifies its own kind.
// Every verification failure collapses to [ErrTokenInvalid].
package jwt
