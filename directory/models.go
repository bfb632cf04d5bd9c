package directory

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit actions.
const (
	ActionRegister          = "register"
	ActionLogin             = "login"
	ActionLogout            = "logout"
	ActionRefresh           = "refresh"
	ActionPasswordReset     = "password_reset"
	ActionPasswordChange    = "password_change"
	ActionEmailVerification = "email_verification"
)

// Role is static reference data seeded at initialization.
type Role struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	Name        string                      `gorm:"size:50;uniqueIndex;not null" json:"name"`
	DisplayName string                      `gorm:"size:100;not null" json:"display_name"`
	Description string                      `gorm:"size:255" json:"description,omitempty"`
	Permissions datatypes.JSONSlice[string] `gorm:"not null" json:"permissions"`
	IsActive    bool                        `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time                   `json:"created_at"`
}

func (Role) TableName() string { return "roles" }

// User is an account. PasswordHash is nil for accounts created through an
// external provider; such accounts cannot log in with a password.
type User struct {
	ID              uuid.UUID         `gorm:"size:36;primaryKey" json:"id"`
	Email           string            `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Username        string            `gorm:"size:50;uniqueIndex;not null" json:"username"`
	PasswordHash    *string           `gorm:"size:255" json:"-"`
	FullName        string            `gorm:"size:100;not null" json:"full_name"`
	AvatarURL       *string           `gorm:"size:500" json:"avatar_url,omitempty"`
	Phone           *string           `gorm:"size:20" json:"phone,omitempty"`
	Bio             *string           `gorm:"type:text" json:"bio,omitempty"`
	EmailVerified   bool              `gorm:"not null" json:"email_verified"`
	IsActive        bool              `gorm:"not null" json:"is_active"`
	RoleID          uint              `gorm:"not null;index" json:"role_id"`
	Role            Role              `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"role"`
	OAuthProvider   *string           `gorm:"size:50" json:"-"`
	OAuthProviderID *string           `gorm:"size:255" json:"-"`
	Preferences     datatypes.JSONMap `json:"preferences,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	LastLoginAt     *time.Time        `json:"last_login_at,omitempty"`

	Sessions    []Session            `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ResetTokens []PasswordResetToken `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// HasPassword reports whether the account can authenticate with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Session is the durable record of a login. SessionToken is the id shared
// by the access and refresh tokens.
type Session struct {
	ID               uuid.UUID         `gorm:"size:36;primaryKey" json:"id"`
	UserID           uuid.UUID         `gorm:"size:36;not null;index" json:"user_id"`
	SessionToken     string            `gorm:"size:64;uniqueIndex;not null" json:"-"`
	RefreshTokenHash string            `gorm:"size:64;uniqueIndex;not null" json:"-"`
	DeviceInfo       datatypes.JSONMap `json:"device_info,omitempty"`
	IPAddress        string            `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent        string            `gorm:"size:512" json:"user_agent,omitempty"`
	IsRememberMe     bool              `gorm:"not null" json:"is_remember_me"`
	ExpiresAt        time.Time         `gorm:"not null;index" json:"expires_at"`
	CreatedAt        time.Time         `json:"created_at"`
	LastAccessedAt   time.Time         `gorm:"not null" json:"last_accessed_at"`
}

func (Session) TableName() string { return "user_sessions" }

func (s *Session) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// PasswordResetToken tracks one issued reset token by its nonce.
type PasswordResetToken struct {
	ID        uuid.UUID  `gorm:"size:36;primaryKey"`
	UserID    uuid.UUID  `gorm:"size:36;not null;index"`
	Token     string     `gorm:"size:255;uniqueIndex;not null"`
	ExpiresAt time.Time  `gorm:"not null;check:chk_reset_token_expiry,expires_at > created_at"`
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (PasswordResetToken) TableName() string { return "password_reset_tokens" }

func (t *PasswordResetToken) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// AuditLog is an append-only audit row. UserID is cleared, not cascaded,
// when the user is deleted.
type AuditLog struct {
	ID        int64             `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UserID    *uuid.UUID        `gorm:"size:36;index" json:"user_id,omitempty"`
	User      *User             `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	Action    string            `gorm:"size:50;not null;index" json:"action"`
	Result    string            `gorm:"size:20;not null" json:"result"`
	IPAddress string            `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent string            `gorm:"size:512" json:"user_agent,omitempty"`
	Details   datatypes.JSONMap `json:"details,omitempty"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string { return "auth_audit_logs" }

// DefaultRoles returns the seed roles, lowest privilege first.
func DefaultRoles() []Role {
	return []Role{
		{
			Name:        "guest",
			DisplayName: "Guest",
			Description: "Unauthenticated or limited access",
			Permissions: datatypes.JSONSlice[string]{"read:public"},
			IsActive:    true,
		},
		{
			Name:        "user",
			DisplayName: "User",
			Description: "Registered user",
			Permissions: datatypes.JSONSlice[string]{"read:public", "read:education", "write:profile"},
			IsActive:    true,
		},
		{
			Name:        "vip",
			DisplayName: "VIP",
			Description: "Registered user with advanced content",
			Permissions: datatypes.JSONSlice[string]{"read:public", "read:education", "read:advanced", "write:profile"},
			IsActive:    true,
		},
		{
			Name:        "admin",
			DisplayName: "Administrator",
			Description: "Full access",
			Permissions: datatypes.JSONSlice[string]{"*"},
			IsActive:    true,
		},
	}
}
