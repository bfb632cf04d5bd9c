package authcore

import "time"

// SecurityReport summarizes the security posture of a built Engine. It
// carries no secrets.
type SecurityReport struct {
	SigningAlgorithm       string
	ValidationMode         ValidationMode
	AccessTTL              time.Duration
	RefreshTTL             time.Duration
	SessionTTL             time.Duration
	RememberMeTTL          time.Duration
	Argon2                 PasswordConfigReport
	HashUpgradeOnLogin     bool
	RefreshRotationEnabled bool
	RateLimitFailOpen      bool
	LoginAttempts          int
	LoginWindow            time.Duration
	VerificationRequired   bool
	DebugExposure          bool
	AuditEnabled           bool

	// Warnings lists settings that weaken a production deployment.
	Warnings []string
}

// PasswordConfigReport mirrors the configured argon2id parameters.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityReport returns the posture of e.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	c := e.config

	r := SecurityReport{
		SigningAlgorithm: "HS256",
		ValidationMode:   c.ValidationMode,
		AccessTTL:        c.JWT.AccessTTL,
		RefreshTTL:       c.JWT.RefreshTTL,
		SessionTTL:       c.Session.TTL,
		RememberMeTTL:    c.Session.RememberMeTTL,
		Argon2: PasswordConfigReport{
			Memory:      c.Password.Memory,
			Time:        c.Password.Time,
			Parallelism: c.Password.Parallelism,
			SaltLength:  c.Password.SaltLength,
			KeyLength:   c.Password.KeyLength,
		},
		HashUpgradeOnLogin:     c.Password.UpgradeOnLogin,
		RefreshRotationEnabled: c.Session.RefreshRotation,
		RateLimitFailOpen:      c.RateLimit.FailOpen,
		LoginAttempts:          c.RateLimit.Login.MaxAttempts,
		LoginWindow:            c.RateLimit.Login.Window,
		VerificationRequired:   c.EmailVerification.RequireForLogin,
		DebugExposure:          c.Register.ExposeDebugCode || c.PasswordReset.ExposeDebugToken,
		AuditEnabled:           c.Audit.Enabled,
	}

	if r.DebugExposure {
		r.Warnings = append(r.Warnings, "verification codes or reset tokens are returned to callers")
	}
	if c.ValidationMode == ModeJWTOnly {
		r.Warnings = append(r.Warnings, "access tokens stay valid after logout until they expire")
	}
	if c.Password.Memory < 64*1024 {
		r.Warnings = append(r.Warnings, "argon2id memory is below 64 MiB")
	}
	if !c.Audit.Enabled {
		r.Warnings = append(r.Warnings, "audit logging is disabled")
	}
	return r
}
