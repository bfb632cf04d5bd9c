// Package directory is the persistent store of record: users, roles,
// sessions, password reset tokens and the audit log, mapped with GORM.
//
// Every method is a single statement (or a read followed by one write) and
// commits on its own. No transaction spans an authentication flow. The
// Redis caches in session and internal/stores are projections of what is
// stored here.
//
// # Dialects
//
// [Open] selects postgres, mysql or sqlite (pure Go, used for development
// and tests) from [Config.Driver]. Timestamps are written in UTC.
//
// # What this package must NOT do
//
//   - Hash passwords or mint tokens. Callers hand in hashes and nonces.
//   - Store raw refresh tokens. Sessions keep a SHA-256 fingerprint only.
//   - Delete audit rows. Removing a user only clears their user id.
package directory
