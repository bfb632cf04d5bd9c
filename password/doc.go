// Package password implements the password policy engine and the credential
// hasher.
//
// # Policy
//
// [Policy.Validate] scores a candidate password on a 0 to 5 scale and lists
// hard errors and softer suggestions. It is pure: the same input always
// produces the same [Result].
//
// # Output format
//
// New hashes are argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Legacy bcrypt hashes ($2a$, $2b$, $2y$) still verify. [Hasher.NeedsRehash]
// flags them, along with argon2id hashes produced under weaker parameters, so
// the caller can replace the stored value after the next successful login.
//
// # Architecture boundaries
//
// This package owns scoring, hashing and verification only. Deciding when a
// password is accepted or upgraded is the Engine's job.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
