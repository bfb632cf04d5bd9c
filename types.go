package authcore

import (
	"time"

	"github.com/shuggg999/authcore/directory"
	"github.com/shuggg999/authcore/jwt"
	"github.com/shuggg999/authcore/permission"
)

// UserSummary is the public projection of a user returned by flows.
type UserSummary struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	Username      string         `json:"username"`
	FullName      string         `json:"full_name"`
	Role          string         `json:"role"`
	AvatarURL     string         `json:"avatar_url,omitempty"`
	Phone         string         `json:"phone,omitempty"`
	EmailVerified bool           `json:"email_verified"`
	IsActive      bool           `json:"is_active"`
	Preferences   map[string]any `json:"preferences,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	LastLoginAt   *time.Time     `json:"last_login_at,omitempty"`
}

func summarize(u *directory.User) UserSummary {
	s := UserSummary{
		ID:            u.ID.String(),
		Email:         u.Email,
		Username:      u.Username,
		FullName:      u.FullName,
		Role:          u.Role.Name,
		EmailVerified: u.EmailVerified,
		IsActive:      u.IsActive,
		Preferences:   u.Preferences,
		CreatedAt:     u.CreatedAt,
		LastLoginAt:   u.LastLoginAt,
	}
	if u.AvatarURL != nil {
		s.AvatarURL = *u.AvatarURL
	}
	if u.Phone != nil {
		s.Phone = *u.Phone
	}
	return s
}

// RegisterRequest is the input of [Engine.Register].
type RegisterRequest struct {
	Email        string         `json:"email"`
	Username     string         `json:"username"`
	Password     string         `json:"password"`
	FullName     string         `json:"full_name"`
	Phone        string         `json:"phone,omitempty"`
	Preferences  map[string]any `json:"preferences,omitempty"`
	AgreeToTerms bool           `json:"agree_to_terms"`
}

// RegisterResult is returned by [Engine.Register]. DebugCode is only set
// when Register.ExposeDebugCode is enabled. VerificationIssued is false
// when the user was created but the code could not be cached; a resend
// recovers from that.
type RegisterResult struct {
	User               UserSummary `json:"user"`
	VerificationIssued bool        `json:"verification_issued"`
	DebugCode          string      `json:"debug_code,omitempty"`
}

// LoginRequest is the input of [Engine.Login].
type LoginRequest struct {
	Email      string         `json:"email"`
	Password   string         `json:"password"`
	RememberMe bool           `json:"remember_me"`
	DeviceInfo map[string]any `json:"device_info,omitempty"`
}

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	User             UserSummary `json:"user"`
	Tokens           jwt.Pair    `json:"tokens"`
	SessionExpiresAt time.Time   `json:"session_expires_at"`
}

// RefreshResult is returned by [Engine.Refresh]. RefreshToken is only set
// when refresh rotation is enabled.
type RefreshResult struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// LogoutResult reports how many sessions were revoked.
type LogoutResult struct {
	LogoutAll bool `json:"logout_all"`
	Revoked   int  `json:"revoked"`
}

// ResendResult is returned by [Engine.ResendVerification].
type ResendResult struct {
	ExpiresAt time.Time `json:"expires_at"`
	DebugCode string    `json:"debug_code,omitempty"`
}

// PasswordResetRequestResult never reveals whether the address exists.
// DebugToken is only set when PasswordReset.ExposeDebugToken is enabled
// and a token was issued.
type PasswordResetRequestResult struct {
	Sent       bool   `json:"sent"`
	DebugToken string `json:"debug_token,omitempty"`
}

// SessionInfo describes one active session of a user.
type SessionInfo struct {
	SessionID      string         `json:"session_id"`
	IPAddress      string         `json:"ip_address,omitempty"`
	UserAgent      string         `json:"user_agent,omitempty"`
	DeviceInfo     map[string]any `json:"device_info,omitempty"`
	RememberMe     bool           `json:"remember_me"`
	CreatedAt      time.Time      `json:"created_at"`
	LastAccessedAt time.Time      `json:"last_accessed_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
	Current        bool           `json:"current"`
}

// RateLimitStatus is returned by [Engine.CheckRateLimit].
type RateLimitStatus struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
	Blocked   bool      `json:"blocked"`
	Degraded  bool      `json:"degraded,omitempty"`
}

// HealthStatus is returned by [Engine.Health].
type HealthStatus struct {
	Healthy          bool          `json:"healthy"`
	RedisLatency     time.Duration `json:"redis_latency"`
	RedisError       string        `json:"redis_error,omitempty"`
	DirectoryLatency time.Duration `json:"directory_latency"`
	DirectoryError   string        `json:"directory_error,omitempty"`
}

// AuthResult is the identity resolved from a valid access token.
type AuthResult struct {
	UserID      string
	Email       string
	Role        string
	Permissions []string
	SessionID   string
	Mask        permission.Mask64
	// Strict is true when the session was confirmed against the store.
	Strict bool

	registry *permission.Registry
}

// HasPermission reports whether the role grants perm. Wildcard roles
// were expanded when roles were loaded.
func (r *AuthResult) HasPermission(perm string) bool {
	if r == nil || r.registry == nil {
		return false
	}
	return r.registry.Has(r.Mask, perm)
}
