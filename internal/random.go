package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	sessionIDSize = 32
	nonceSize     = 16
)

// NewSessionID returns 32 random bytes encoded as unpadded base64url.
func NewSessionID() (string, error) {
	return randomURLString(sessionIDSize)
}

// NewNonce returns a 16 byte random nonce encoded as unpadded base64url.
func NewNonce() (string, error) {
	return randomURLString(nonceSize)
}

func randomURLString(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ValidSessionID reports whether s has the shape produced by NewSessionID.
func ValidSessionID(s string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return false
	}
	return len(raw) == sessionIDSize
}

// HashToken returns the hex SHA-256 fingerprint of a bearer credential.
// Only fingerprints are persisted, never the credential itself.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewOTP returns a uniformly random numeric code of the given length.
func NewOTP(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}
