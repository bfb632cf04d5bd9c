package authcore

import (
	"errors"
	"time"

	"github.com/shuggg999/authcore/password"
)

// Config holds every Engine setting. Build clones it, so later changes to
// the caller's copy have no effect.
type Config struct {
	JWT               JWTConfig
	Session           SessionConfig
	Password          PasswordConfig
	PasswordPolicy    password.PolicyConfig
	RateLimit         RateLimitConfig
	EmailVerification EmailVerificationConfig
	PasswordReset     PasswordResetConfig
	Register          RegisterConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
	ValidationMode    ValidationMode
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the token codec. Secret is the access-token key;
// refresh and action keys are derived from it.
type JWTConfig struct {
	Secret          []byte
	Issuer          string
	Audience        string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	Leeway          time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetimes and the Redis cache layout.
type SessionConfig struct {
	RedisPrefix string
	// TTL is the lifetime of a session without remember-me.
	TTL           time.Duration
	RememberMeTTL time.Duration
	// IndexTTL bounds the per-user session index in Redis.
	IndexTTL time.Duration
	// RefreshRotation issues a new refresh token on every refresh and
	// rejects the previous one.
	RefreshRotation bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds the argon2id parameters.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// UpgradeOnLogin rehashes legacy or weaker hashes after a successful
	// password login.
	UpgradeOnLogin bool
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitPolicy is one sliding-window budget.
type RateLimitPolicy struct {
	MaxAttempts   int
	Window        time.Duration
	BlockDuration time.Duration
}

// RateLimitConfig groups the limiter budgets.
type RateLimitConfig struct {
	// FailOpen admits requests when Redis is unreachable.
	FailOpen       bool
	Login          RateLimitPolicy
	API            RateLimitPolicy
	Verification   RateLimitPolicy
	PasswordReset  RateLimitPolicy
	// ChangePassword bounds current-password guesses per user.
	ChangePassword RateLimitPolicy
}

/*
====================================
EMAIL VERIFICATION / RESET CONFIG
====================================
*/

// EmailVerificationConfig controls verification codes.
type EmailVerificationConfig struct {
	CodeDigits  int
	CodeTTL     time.Duration
	MaxAttempts int
	// RequireForLogin rejects password logins of unverified accounts.
	RequireForLogin bool
}

// PasswordResetConfig controls the forgot-password flow. The token
// lifetime is JWT.ResetTTL.
type PasswordResetConfig struct {
	// ExposeDebugToken returns the reset token to the caller instead of
	// leaving delivery to an email sender. Development only.
	ExposeDebugToken bool
}

// RegisterConfig controls account registration.
type RegisterConfig struct {
	DefaultRole string
	// ExposeDebugCode returns verification codes to the caller. Development
	// only.
	ExposeDebugCode bool
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled     bool
	BufferSize  int
	DropIfFull  bool
	SinkTimeout time.Duration
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// ValidationMode selects how access tokens are checked.
type ValidationMode int

const (
	// ModeInherit defers to Config.ValidationMode.
	ModeInherit ValidationMode = -1

	// ModeJWTOnly trusts a valid signature and expiry.
	ModeJWTOnly ValidationMode = iota
	// ModeStrict additionally requires a live session and slides its TTL.
	ModeStrict
)

func (m ValidationMode) String() string {
	switch m {
	case ModeInherit:
		return "inherit"
	case ModeJWTOnly:
		return "jwt_only"
	case ModeStrict:
		return "strict"
	default:
		return "unknown"
	}
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults. JWT.Secret is empty and
// must be set.
func DefaultConfig() Config {
	hash := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			Issuer:          "smartfin.tech",
			Audience:        "smartfin-app",
			AccessTTL:       30 * time.Minute,
			RefreshTTL:      30 * 24 * time.Hour,
			VerificationTTL: 24 * time.Hour,
			ResetTTL:        time.Hour,
			Leeway:          30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix:   "authcore",
			TTL:           2 * time.Hour,
			RememberMeTTL: 30 * 24 * time.Hour,
			IndexTTL:      30 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:         hash.Memory,
			Time:           hash.Time,
			Parallelism:    hash.Parallelism,
			SaltLength:     hash.SaltLength,
			KeyLength:      hash.KeyLength,
			UpgradeOnLogin: true,
		},
		PasswordPolicy: password.DefaultPolicyConfig(),
		RateLimit: RateLimitConfig{
			FailOpen: true,
			Login: RateLimitPolicy{
				MaxAttempts:   5,
				Window:        15 * time.Minute,
				BlockDuration: 15 * time.Minute,
			},
			API: RateLimitPolicy{
				MaxAttempts: 10,
				Window:      time.Minute,
			},
			Verification: RateLimitPolicy{
				MaxAttempts: 3,
				Window:      time.Hour,
			},
			PasswordReset: RateLimitPolicy{
				MaxAttempts: 3,
				Window:      time.Hour,
			},
			ChangePassword: RateLimitPolicy{
				MaxAttempts:   5,
				Window:        15 * time.Minute,
				BlockDuration: 15 * time.Minute,
			},
		},
		EmailVerification: EmailVerificationConfig{
			CodeDigits:  6,
			CodeTTL:     24 * time.Hour,
			MaxAttempts: 3,
		},
		Register: RegisterConfig{
			DefaultRole: "user",
		},
		Audit: AuditConfig{
			Enabled:     true,
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		ValidationMode: ModeStrict,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.PasswordPolicy.Forbidden = append([]string(nil), cfg.PasswordPolicy.Forbidden...)
	out.PasswordPolicy.KeyboardPatterns = append([]string(nil), cfg.PasswordPolicy.KeyboardPatterns...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT Secret must be at least 32 bytes")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}
	if c.JWT.VerificationTTL <= 0 || c.JWT.ResetTTL <= 0 {
		return errors.New("JWT VerificationTTL and ResetTTL must be > 0")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.TTL <= 0 || c.Session.RememberMeTTL <= 0 {
		return errors.New("Session TTL and RememberMeTTL must be > 0")
	}
	if c.Session.RememberMeTTL < c.Session.TTL {
		return errors.New("Session RememberMeTTL must be >= TTL")
	}
	if c.Session.IndexTTL < 0 {
		return errors.New("Session IndexTTL must be >= 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.PasswordPolicy.MinLength < 1 || c.PasswordPolicy.MaxLength < c.PasswordPolicy.MinLength {
		return errors.New("PasswordPolicy length bounds are invalid")
	}

	// Rate limits
	for name, p := range map[string]RateLimitPolicy{
		"Login":          c.RateLimit.Login,
		"API":            c.RateLimit.API,
		"Verification":   c.RateLimit.Verification,
		"PasswordReset":  c.RateLimit.PasswordReset,
		"ChangePassword": c.RateLimit.ChangePassword,
	} {
		if p.MaxAttempts <= 0 || p.Window <= 0 || p.BlockDuration < 0 {
			return errors.New("RateLimit " + name + " policy is invalid")
		}
	}

	// Email verification
	if c.EmailVerification.CodeDigits < 4 || c.EmailVerification.CodeDigits > 10 {
		return errors.New("EmailVerification CodeDigits must be between 4 and 10")
	}
	if c.EmailVerification.CodeTTL <= 0 {
		return errors.New("EmailVerification CodeTTL must be > 0")
	}
	if c.EmailVerification.MaxAttempts <= 0 {
		return errors.New("EmailVerification MaxAttempts must be > 0")
	}

	if c.Register.DefaultRole == "" {
		return errors.New("Register DefaultRole must not be empty")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	if c.ValidationMode != ModeJWTOnly && c.ValidationMode != ModeStrict {
		return errors.New("ValidationMode must be ModeJWTOnly or ModeStrict")
	}

	return nil
}
