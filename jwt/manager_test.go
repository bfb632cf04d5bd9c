package jwt

import (
	"bytes"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		Secret:   testSecret,
		Issuer:   "smartfin.tech",
		Audience: "smartfin-app",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func testSubject() Subject {
	return Subject{
		UserID:      "user-1",
		Email:       "a@x.com",
		Role:        "user",
		Permissions: []string{"read:public", "write:profile"},
	}
}

func TestIssuePairRoundTrip(t *testing.T) {
	m := newTestManager(t)

	pair, err := m.IssuePair(testSubject())
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}
	if pair.TokenType != "Bearer" || pair.ExpiresIn != int64((30*time.Minute)/time.Second) {
		t.Fatalf("unexpected pair metadata: %+v", pair)
	}

	claims, err := m.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess failed: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != "user" || claims.SessionID != pair.SessionID || claims.Type != TypeAccess {
		t.Fatalf("unexpected access claims: %+v", claims)
	}
	if claims.Email != "a@x.com" || len(claims.Permissions) != 2 {
		t.Fatalf("unexpected identity claims: %+v", claims)
	}

	refresh, err := m.VerifyRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("VerifyRefresh failed: %v", err)
	}
	if refresh.SessionID != pair.SessionID || refresh.Type != TypeRefresh || refresh.Subject != "user-1" {
		t.Fatalf("unexpected refresh claims: %+v", refresh)
	}
	if refresh.Email != "" || refresh.Role != "" {
		t.Fatal("refresh token must not carry identity claims")
	}
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	m := newTestManager(t)

	pair, err := m.IssuePair(testSubject())
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}
	if _, err := m.VerifyRefresh(pair.AccessToken); err != ErrTokenInvalid {
		t.Fatalf("expected access token rejected as refresh, got %v", err)
	}
	if _, err := m.VerifyAccess(pair.RefreshToken); err != ErrTokenInvalid {
		t.Fatalf("expected refresh token rejected as access, got %v", err)
	}

	reset, err := m.IssuePasswordReset("user-1", "a@x.com")
	if err != nil {
		t.Fatalf("IssuePasswordReset failed: %v", err)
	}
	if _, err := m.VerifyEmailVerification(reset.Token); err != ErrTokenInvalid {
		t.Fatalf("expected reset token rejected as verification, got %v", err)
	}
	if _, err := m.VerifyAccess(reset.Token); err != ErrTokenInvalid {
		t.Fatalf("expected reset token rejected as access, got %v", err)
	}
}

func TestAccessKeyCannotForgeRefresh(t *testing.T) {
	m := newTestManager(t)

	if bytes.Equal(m.accessKey, m.refreshKey) || bytes.Equal(m.refreshKey, m.actionKey) {
		t.Fatal("derived keys must differ from the access key and each other")
	}

	now := time.Now()
	forged := Claims{
		SessionID: "sid",
		Type:      TypeRefresh,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "smartfin.tech",
			Audience:  gjwt.ClaimStrings{"smartfin-app"},
			IssuedAt:  gjwt.NewNumericDate(now),
			ExpiresAt: gjwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, forged).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := m.VerifyRefresh(token); err != ErrTokenInvalid {
		t.Fatalf("expected refresh signed with access key to be rejected, got %v", err)
	}
}

func TestDistinctSessionIDs(t *testing.T) {
	m := newTestManager(t)

	a, err := m.IssuePair(testSubject())
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}
	b, err := m.IssuePair(testSubject())
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}
	if a.SessionID == b.SessionID || a.RefreshToken == b.RefreshToken {
		t.Fatal("expected distinct sessions for two logins")
	}
}

func TestVerifyRejectsIssuerAudienceAndAlgorithm(t *testing.T) {
	m := newTestManager(t)
	pair, err := m.IssuePair(testSubject())
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}

	other, err := NewManager(Config{Secret: testSecret, Issuer: "other", Audience: "smartfin-app"})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := other.VerifyAccess(pair.AccessToken); err != ErrTokenInvalid {
		t.Fatalf("expected issuer mismatch rejection, got %v", err)
	}

	otherAud, err := NewManager(Config{Secret: testSecret, Issuer: "smartfin.tech", Audience: "admin-app"})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := otherAud.VerifyAccess(pair.AccessToken); err != ErrTokenInvalid {
		t.Fatalf("expected audience mismatch rejection, got %v", err)
	}

	parts := strings.Split(pair.AccessToken, ".")
	none := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0." + parts[1] + "."
	if _, err := m.VerifyAccess(none); err != ErrTokenInvalid {
		t.Fatalf("expected alg=none rejection, got %v", err)
	}

	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := m.VerifyAccess(tampered); err != ErrTokenInvalid {
		t.Fatalf("expected tampered signature rejection, got %v", err)
	}
	if _, err := m.VerifyAccess(""); err != ErrTokenInvalid {
		t.Fatalf("expected empty token rejection, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := newTestManager(t)
	pair, err := m.IssuePair(testSubject())
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}

	m.now = func() time.Time { return time.Now().Add(31 * time.Minute) }
	if _, err := m.VerifyAccess(pair.AccessToken); err != ErrTokenInvalid {
		t.Fatalf("expected expired access rejection, got %v", err)
	}
	if _, err := m.VerifyRefresh(pair.RefreshToken); err != nil {
		t.Fatalf("refresh should outlive access: %v", err)
	}

	m.now = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }
	if _, err := m.VerifyRefresh(pair.RefreshToken); err != ErrTokenInvalid {
		t.Fatalf("expected expired refresh rejection, got %v", err)
	}
}

func TestRotateAccessKeepsSession(t *testing.T) {
	m := newTestManager(t)
	pair, err := m.IssuePair(testSubject())
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}

	sub := testSubject()
	sub.Role = "vip"
	rotated, err := m.RotateAccess(pair.RefreshToken, sub)
	if err != nil {
		t.Fatalf("RotateAccess failed: %v", err)
	}
	if rotated.SessionID != pair.SessionID || rotated.RefreshToken != "" {
		t.Fatalf("unexpected rotated pair: %+v", rotated)
	}

	claims, err := m.VerifyAccess(rotated.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess failed: %v", err)
	}
	if claims.Role != "vip" || claims.SessionID != pair.SessionID {
		t.Fatalf("expected current snapshot on rotated token, got %+v", claims)
	}

	sub.UserID = "someone-else"
	if _, err := m.RotateAccess(pair.RefreshToken, sub); err != ErrTokenInvalid {
		t.Fatalf("expected subject mismatch rejection, got %v", err)
	}
	if _, err := m.RotateAccess(pair.AccessToken, testSubject()); err != ErrTokenInvalid {
		t.Fatalf("expected access token rejected for rotation, got %v", err)
	}
}

func TestPasswordResetTokenCarriesNonce(t *testing.T) {
	m := newTestManager(t)

	a, err := m.IssuePasswordReset("user-1", "a@x.com")
	if err != nil {
		t.Fatalf("IssuePasswordReset failed: %v", err)
	}
	b, err := m.IssuePasswordReset("user-1", "a@x.com")
	if err != nil {
		t.Fatalf("IssuePasswordReset failed: %v", err)
	}
	if a.Nonce == "" || a.Nonce == b.Nonce {
		t.Fatal("expected unique reset nonces")
	}

	claims, err := m.VerifyPasswordReset(a.Token)
	if err != nil {
		t.Fatalf("VerifyPasswordReset failed: %v", err)
	}
	if claims.ID != a.Nonce || claims.Subject != "user-1" || claims.Email != "a@x.com" {
		t.Fatalf("unexpected reset claims: %+v", claims)
	}

	m.now = func() time.Time { return time.Now().Add(61 * time.Minute) }
	if _, err := m.VerifyPasswordReset(a.Token); err != ErrTokenInvalid {
		t.Fatalf("expected expired reset rejection, got %v", err)
	}
}

func TestEmailVerificationToken(t *testing.T) {
	m := newTestManager(t)

	tok, err := m.IssueEmailVerification("user-1", "a@x.com")
	if err != nil {
		t.Fatalf("IssueEmailVerification failed: %v", err)
	}
	claims, err := m.VerifyEmailVerification(tok.Token)
	if err != nil {
		t.Fatalf("VerifyEmailVerification failed: %v", err)
	}
	if claims.Email != "a@x.com" || claims.Type != TypeEmailVerification {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if tok.ExpiresAt.Sub(time.Now()) > 24*time.Hour {
		t.Fatal("verification token lifetime exceeds 24h")
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{Secret: []byte("short")}); err == nil {
		t.Fatal("expected short secret rejection")
	}
	if _, err := NewManager(Config{Secret: testSecret, Leeway: time.Hour}); err == nil {
		t.Fatal("expected leeway rejection")
	}
	if _, err := NewManager(Config{Secret: testSecret, AccessTTL: time.Hour, RefreshTTL: time.Minute}); err == nil {
		t.Fatal("expected refresh shorter than access rejection")
	}
}
