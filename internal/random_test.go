package internal

import (
	"strings"
	"testing"
)

func TestNewSessionIDUniqueAndWellFormed(t *testing.T) {
	seen := make(map[string]struct{}, 64)
	for i := 0; i < 64; i++ {
		sid, err := NewSessionID()
		if err != nil {
			t.Fatalf("NewSessionID failed: %v", err)
		}
		if !ValidSessionID(sid) {
			t.Fatalf("expected valid session id, got %q", sid)
		}
		if _, dup := seen[sid]; dup {
			t.Fatalf("duplicate session id %q", sid)
		}
		seen[sid] = struct{}{}
	}
}

func TestValidSessionIDRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "!!!not-base64!!!", strings.Repeat("A", 10)} {
		if ValidSessionID(in) {
			t.Fatalf("expected %q to be rejected", in)
		}
	}
}

func TestNewOTPDigits(t *testing.T) {
	code, err := NewOTP(6)
	if err != nil {
		t.Fatalf("NewOTP failed: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6 digits, got %q", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("expected numeric code, got %q", code)
		}
	}

	if _, err := NewOTP(2); err == nil {
		t.Fatal("expected error for too few digits")
	}
}

func TestHashTokenStable(t *testing.T) {
	a := HashToken("token-a")
	if a != HashToken("token-a") {
		t.Fatal("expected stable fingerprint")
	}
	if a == HashToken("token-b") {
		t.Fatal("expected distinct fingerprints")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %d chars", len(a))
	}
}
