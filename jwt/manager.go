package jwt

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"github.com/shuggg999/authcore/internal"
)

// TokenType is carried in the "type" claim of every token.
type TokenType string

const (
	TypeAccess            TokenType = "access"
	TypeRefresh           TokenType = "refresh"
	TypeEmailVerification TokenType = "email_verification"
	TypePasswordReset     TokenType = "password_reset"
)

const (
	minSecretLength = 32

	refreshKeyInfo = "authcore/refresh-token/v1"
	actionKeyInfo  = "authcore/action-token/v1"
)

// ErrTokenInvalid is the only error returned by the Verify methods. The
// underlying reason is deliberately not exposed.
var ErrTokenInvalid = errors.New("token invalid")

// Config configures a [Manager].
type Config struct {
	// Secret is the access-token key S1. The refresh and action keys are
	// derived from it.
	Secret   []byte
	Issuer   string
	Audience string

	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	VerificationTTL time.Duration
	ResetTTL        time.Duration

	Leeway time.Duration
}

// DefaultConfig returns lifetimes used when the caller leaves them unset.
func DefaultConfig() Config {
	return Config{
		Issuer:          "smartfin.tech",
		Audience:        "smartfin-app",
		AccessTTL:       30 * time.Minute,
		RefreshTTL:      30 * 24 * time.Hour,
		VerificationTTL: 24 * time.Hour,
		ResetTTL:        time.Hour,
	}
}

// Subject is the identity snapshot embedded in access tokens.
type Subject struct {
	UserID      string
	Email       string
	Role        string
	Permissions []string
}

// Claims is the claim set shared by all token types. Fields that do not
// apply to a type are omitted on the wire.
type Claims struct {
	Email       string    `json:"email,omitempty"`
	Role        string    `json:"role,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
	SessionID   string    `json:"sid,omitempty"`
	Type        TokenType `json:"type"`
	jwt.RegisteredClaims
}

// Pair is the result of [Manager.IssuePair] and [Manager.RotateAccess].
// RotateAccess leaves RefreshToken empty.
type Pair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	SessionID        string    `json:"session_id"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitempty"`
}

// ActionToken is a single-purpose token for email verification or
// password reset.
type ActionToken struct {
	Token     string
	Nonce     string
	ExpiresAt time.Time
}

// Manager issues and verifies HS256 tokens. Access tokens are signed with
// the configured secret; refresh and action tokens with HKDF-derived keys
// so a leaked access key cannot mint them.
//
// Manager is immutable after construction and safe for concurrent use.
type Manager struct {
	config     Config
	accessKey  []byte
	refreshKey []byte
	actionKey  []byte
	now        func() time.Time
}

// NewManager validates cfg, fills unset lifetimes from [DefaultConfig] and
// derives the secondary keys.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minSecretLength)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	def := DefaultConfig()
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = def.AccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = def.RefreshTTL
	}
	if cfg.VerificationTTL == 0 {
		cfg.VerificationTTL = def.VerificationTTL
	}
	if cfg.ResetTTL == 0 {
		cfg.ResetTTL = def.ResetTTL
	}
	if cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 || cfg.VerificationTTL < 0 || cfg.ResetTTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("refresh TTL must exceed access TTL")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)

	refreshKey, err := deriveKey(cfg.Secret, refreshKeyInfo)
	if err != nil {
		return nil, err
	}
	actionKey, err := deriveKey(cfg.Secret, actionKeyInfo)
	if err != nil {
		return nil, err
	}

	accessKey := make([]byte, len(cfg.Secret))
	copy(accessKey, cfg.Secret)

	return &Manager{
		config:     cfg,
		accessKey:  accessKey,
		refreshKey: refreshKey,
		actionKey:  actionKey,
		now:        time.Now,
	}, nil
}

func deriveKey(secret []byte, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", info, err)
	}
	return key, nil
}

// AccessTTL returns the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// IssuePair mints an access and refresh token bound to a fresh session id.
func (m *Manager) IssuePair(sub Subject) (*Pair, error) {
	if sub.UserID == "" {
		return nil, errors.New("jwt subject user id is required")
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}

	now := m.now()
	access, accessExp, err := m.signAccess(sub, sid, now)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := m.signRefresh(sub.UserID, sid, now)
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		SessionID:        sid,
		TokenType:        "Bearer",
		ExpiresIn:        int64(m.config.AccessTTL / time.Second),
		ExpiresAt:        accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// IssueRefresh mints a new refresh token for an existing session.
func (m *Manager) IssueRefresh(userID, sessionID string) (string, time.Time, error) {
	if userID == "" || sessionID == "" {
		return "", time.Time{}, errors.New("jwt refresh requires user and session id")
	}
	return m.signRefresh(userID, sessionID, m.now())
}

// RotateAccess verifies refreshToken and issues a new access token for the
// same session id using sub as the current identity. The refresh token is
// not replaced.
func (m *Manager) RotateAccess(refreshToken string, sub Subject) (*Pair, error) {
	claims, err := m.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.Subject != sub.UserID {
		return nil, ErrTokenInvalid
	}

	now := m.now()
	access, exp, err := m.signAccess(sub, claims.SessionID, now)
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken: access,
		SessionID:   claims.SessionID,
		TokenType:   "Bearer",
		ExpiresIn:   int64(m.config.AccessTTL / time.Second),
		ExpiresAt:   exp,
	}, nil
}

// VerifyAccess validates an access token.
func (m *Manager) VerifyAccess(token string) (*Claims, error) {
	claims, err := m.parse(token, m.accessKey, TypeAccess)
	if err != nil {
		return nil, err
	}
	if claims.SessionID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// VerifyRefresh validates a refresh token.
func (m *Manager) VerifyRefresh(token string) (*Claims, error) {
	claims, err := m.parse(token, m.refreshKey, TypeRefresh)
	if err != nil {
		return nil, err
	}
	if claims.SessionID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// IssueEmailVerification mints a verification token for a link-based flow.
func (m *Manager) IssueEmailVerification(userID, email string) (*ActionToken, error) {
	return m.signAction(userID, email, TypeEmailVerification, m.config.VerificationTTL)
}

// VerifyEmailVerification validates a token from [Manager.IssueEmailVerification].
func (m *Manager) VerifyEmailVerification(token string) (*Claims, error) {
	return m.parse(token, m.actionKey, TypeEmailVerification)
}

// IssuePasswordReset mints a reset token. The returned Nonce is the token's
// jti and is what the caller persists to enforce single use.
func (m *Manager) IssuePasswordReset(userID, email string) (*ActionToken, error) {
	return m.signAction(userID, email, TypePasswordReset, m.config.ResetTTL)
}

// VerifyPasswordReset validates a reset token. Claims.ID holds the nonce.
func (m *Manager) VerifyPasswordReset(token string) (*Claims, error) {
	claims, err := m.parse(token, m.actionKey, TypePasswordReset)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (m *Manager) signAccess(sub Subject, sid string, now time.Time) (string, time.Time, error) {
	exp := now.Add(m.config.AccessTTL)
	perms := make([]string, len(sub.Permissions))
	copy(perms, sub.Permissions)

	claims := Claims{
		Email:            sub.Email,
		Role:             sub.Role,
		Permissions:      perms,
		SessionID:        sid,
		Type:             TypeAccess,
		RegisteredClaims: m.registered(sub.UserID, now, exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessKey)
	return signed, exp, err
}

func (m *Manager) signRefresh(userID, sid string, now time.Time) (string, time.Time, error) {
	exp := now.Add(m.config.RefreshTTL)
	claims := Claims{
		SessionID:        sid,
		Type:             TypeRefresh,
		RegisteredClaims: m.registered(userID, now, exp),
	}
	// jti keeps two refresh tokens minted in the same second distinct.
	nonce, err := internal.NewNonce()
	if err != nil {
		return "", time.Time{}, err
	}
	claims.ID = nonce

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshKey)
	return signed, exp, err
}

func (m *Manager) signAction(userID, email string, typ TokenType, ttl time.Duration) (*ActionToken, error) {
	if userID == "" {
		return nil, errors.New("jwt subject user id is required")
	}

	nonce, err := internal.NewNonce()
	if err != nil {
		return nil, err
	}

	now := m.now()
	exp := now.Add(ttl)
	claims := Claims{
		Email:            email,
		Type:             typ,
		RegisteredClaims: m.registered(userID, now, exp),
	}
	claims.ID = nonce

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.actionKey)
	if err != nil {
		return nil, err
	}
	return &ActionToken{Token: signed, Nonce: nonce, ExpiresAt: exp}, nil
}

func (m *Manager) registered(subject string, now, exp time.Time) jwt.RegisteredClaims {
	rc := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    m.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	if m.config.Audience != "" {
		rc.Audience = jwt.ClaimStrings{m.config.Audience}
	}
	return rc
}

func (m *Manager) parse(token string, key []byte, want TokenType) (*Claims, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return key, nil
	})
	if err != nil {
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Type != want || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
