package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned by [Hasher.Hash] for an empty plaintext.
var ErrEmptyPassword = errors.New("password: empty plaintext")

// Hasher produces argon2id hashes and verifies both argon2id and legacy
// bcrypt hashes.
//
// Hasher is immutable after construction and safe for concurrent use. Hash
// and Verify are CPU bound and do not take locks.
type Hasher struct {
	cfg Config
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Hasher{cfg: cfg}, nil
}

// Params returns the configured argon2id parameters.
func (h *Hasher) Params() Config {
	return h.cfg
}

// Hash returns an argon2id PHC string for plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	return argon2Encode(h.cfg, plaintext)
}

// Verify reports whether plaintext matches encoded. Malformed or unknown
// hash formats yield false.
func (h *Hasher) Verify(plaintext, encoded string) bool {
	if plaintext == "" || encoded == "" {
		return false
	}

	switch {
	case strings.HasPrefix(encoded, argon2Prefix):
		parsed, err := parseArgon2(encoded)
		if err != nil {
			return false
		}
		return argon2Matches(plaintext, parsed)
	case isBcrypt(encoded):
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plaintext)) == nil
	default:
		return false
	}
}

// NeedsRehash reports whether encoded should be replaced by a fresh hash on
// the next successful verification. Legacy bcrypt hashes, unparsable values
// and argon2id hashes with weaker parameters than configured all qualify.
func (h *Hasher) NeedsRehash(encoded string) bool {
	if !strings.HasPrefix(encoded, argon2Prefix) {
		return true
	}

	parsed, err := parseArgon2(encoded)
	if err != nil {
		return true
	}

	return parsed.memory < h.cfg.Memory ||
		parsed.time < h.cfg.Time ||
		parsed.parallelism < h.cfg.Parallelism ||
		uint32(len(parsed.key)) != h.cfg.KeyLength ||
		uint32(len(parsed.salt)) < h.cfg.SaltLength
}

func isBcrypt(encoded string) bool {
	if len(encoded) != 60 {
		return false
	}
	switch encoded[:4] {
	case "$2a$", "$2b$", "$2y$":
		return true
	}
	return false
}
