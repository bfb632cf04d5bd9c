package authcore

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/shuggg999/authcore/directory"
)

// RedisConfig is the connection target used by binaries.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"       envDefault:"0"`
}

// DatabaseConfig is the directory connection used by binaries.
type DatabaseConfig struct {
	Driver          string        `env:"DATABASE_DRIVER"            envDefault:"sqlite"`
	DSN             string        `env:"DATABASE_DSN"               envDefault:"file:authcore.db?cache=shared"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS"    envDefault:"25"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
	NodeID          int64         `env:"DATABASE_NODE_ID"           envDefault:"1"`
}

// Directory converts the env values into a [directory.Config].
func (c DatabaseConfig) Directory() directory.Config {
	return directory.Config{
		Driver:          c.Driver,
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		NodeID:          c.NodeID,
	}
}

// EnvConfig is everything a binary reads from the environment.
type EnvConfig struct {
	Auth     Config
	Redis    RedisConfig
	Database DatabaseConfig
	Log      LogConfig
}

// authEnv holds raw env values for the Engine configuration.
type authEnv struct {
	SecretKey          string        `env:"AUTH_SECRET_KEY"`
	Issuer             string        `env:"AUTH_ISSUER"                 envDefault:"smartfin.tech"`
	Audience           string        `env:"AUTH_AUDIENCE"               envDefault:"smartfin-app"`
	AccessTTL          time.Duration `env:"AUTH_ACCESS_TTL"             envDefault:"30m"`
	RefreshTTL         time.Duration `env:"AUTH_REFRESH_TTL"            envDefault:"720h"`
	SessionTTL         time.Duration `env:"AUTH_SESSION_TTL"            envDefault:"2h"`
	RememberMeTTL      time.Duration `env:"AUTH_REMEMBER_ME_TTL"        envDefault:"720h"`
	RedisPrefix        string        `env:"AUTH_REDIS_PREFIX"           envDefault:"authcore"`
	ExposeDebugCodes   bool          `env:"AUTH_EXPOSE_DEBUG_CODES"     envDefault:"false"`
	RateLimitFailOpen  bool          `env:"AUTH_RATE_LIMIT_FAIL_OPEN"   envDefault:"true"`
	RequireVerified    bool          `env:"AUTH_REQUIRE_VERIFIED_LOGIN" envDefault:"false"`
	RefreshRotation    bool          `env:"AUTH_REFRESH_ROTATION"       envDefault:"false"`
	AuditBufferSize    int           `env:"AUTH_AUDIT_BUFFER_SIZE"      envDefault:"1024"`
	MetricsEnabled     bool          `env:"AUTH_METRICS_ENABLED"        envDefault:"true"`
	LatencyHistograms  bool          `env:"AUTH_LATENCY_HISTOGRAMS"     envDefault:"false"`
	StrictValidation   bool          `env:"AUTH_STRICT_VALIDATION"      envDefault:"true"`
	UpgradeHashOnLogin bool          `env:"AUTH_UPGRADE_HASH_ON_LOGIN"  envDefault:"true"`
}

type rawEnv struct {
	Auth     authEnv
	Redis    RedisConfig
	Database DatabaseConfig
	Log      LogConfig
}

// LoadConfigFromEnv reads .env when present, then the process environment.
// Values missing from both fall back to [DefaultConfig]. The result is not
// validated; Builder.Build does that.
func LoadConfigFromEnv() (EnvConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return EnvConfig{}, fmt.Errorf("load .env: %w", err)
	}

	var raw rawEnv
	if err := env.Parse(&raw); err != nil {
		return EnvConfig{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := DefaultConfig()
	a := raw.Auth
	cfg.JWT.Secret = []byte(a.SecretKey)
	cfg.JWT.Issuer = a.Issuer
	cfg.JWT.Audience = a.Audience
	cfg.JWT.AccessTTL = a.AccessTTL
	cfg.JWT.RefreshTTL = a.RefreshTTL
	cfg.Session.TTL = a.SessionTTL
	cfg.Session.RememberMeTTL = a.RememberMeTTL
	cfg.Session.RedisPrefix = a.RedisPrefix
	cfg.Session.RefreshRotation = a.RefreshRotation
	cfg.Register.ExposeDebugCode = a.ExposeDebugCodes
	cfg.PasswordReset.ExposeDebugToken = a.ExposeDebugCodes
	cfg.RateLimit.FailOpen = a.RateLimitFailOpen
	cfg.EmailVerification.RequireForLogin = a.RequireVerified
	cfg.Audit.BufferSize = a.AuditBufferSize
	cfg.Metrics.Enabled = a.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = a.LatencyHistograms
	cfg.Password.UpgradeOnLogin = a.UpgradeHashOnLogin
	if !a.StrictValidation {
		cfg.ValidationMode = ModeJWTOnly
	}

	return EnvConfig{
		Auth:     cfg,
		Redis:    raw.Redis,
		Database: raw.Database,
		Log:      raw.Log,
	}, nil
}
