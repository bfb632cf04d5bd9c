// Package authcore is an authentication core: account registration, password
// login, JWT access and refresh tokens, Redis-cached sessions backed by a
// relational directory, email verification codes and password resets.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config]
// and the flow request/result types. Hashing lives in password, token
// signing in jwt, the session cache in session and durable records in
// directory. Rate limiting, verification codes and audit dispatch live under
// internal/ and are never exported.
//
// The directory is the source of truth. The cache only decides when a
// session expires; every cached record can be rebuilt from the directory.
//
// # What this package must NOT do
//
//   - Expose Redis keys or cached encodings in its public API.
//   - Reveal whether an email exists through login or reset failures.
//   - Let an audit or cache failure abort a flow that already committed.
//   - Import any sub-package that re-imports authcore.
//
// # Performance contract
//
// Validate is the hot path. In ModeJWTOnly it makes no network calls; in
// ModeStrict it makes one Redis round trip while the session is cached.
// Login, Refresh and the other flows make a bounded number of directory
// statements and never hold a transaction across steps.
package authcore
