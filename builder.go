package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shuggg999/authcore/directory"
	"github.com/shuggg999/authcore/internal/audit"
	"github.com/shuggg999/authcore/internal/rate"
	"github.com/shuggg999/authcore/internal/stores"
	"github.com/shuggg999/authcore/jwt"
	"github.com/shuggg999/authcore/password"
	"github.com/shuggg999/authcore/permission"
	"github.com/shuggg999/authcore/session"
)

const roleLoadTimeout = 10 * time.Second

// Builder assembles an [Engine]. A Builder can be used once.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	directory *directory.Store
	logger    *zap.Logger

	roles     map[string][]string
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the cache service client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDirectory sets the persistent store of record.
func (b *Builder) WithDirectory(store *directory.Store) *Builder {
	b.directory = store
	return b
}

// WithLogger sets the logger used for best-effort failures.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithRoles overrides the role to permission mapping. Without it, roles are
// loaded from the directory at Build.
func (b *Builder) WithRoles(r map[string][]string) *Builder {
	b.roles = r
	return b
}

// WithAuditSink adds a sink next to the directory audit log.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, resolves role masks and wires every
// component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.directory == nil {
		return nil, errors.New("directory required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	roles := b.roles
	if roles == nil {
		ctx, cancel := context.WithTimeout(context.Background(), roleLoadTimeout)
		loaded, err := loadRoles(ctx, b.directory)
		cancel()
		if err != nil {
			return nil, err
		}
		roles = loaded
	}
	if len(roles) == 0 {
		return nil, errors.New("roles must be provided or seeded in the directory")
	}

	// -------- PERMISSION REGISTRY --------
	registry := permission.NewRegistry(true)
	lists := make([][]string, 0, len(roles))
	for _, perms := range roles {
		lists = append(lists, perms)
	}
	if err := registry.RegisterAll(lists...); err != nil {
		return nil, err
	}
	registry.Freeze()

	// -------- ROLE MANAGER --------
	roleManager := permission.NewRoleManager(registry)
	for roleName, perms := range roles {
		if err := roleManager.RegisterRole(roleName, perms); err != nil {
			return nil, err
		}
	}
	roleManager.Freeze()

	if _, ok := roleManager.GetMask(cfg.Register.DefaultRole); !ok {
		return nil, fmt.Errorf("Register DefaultRole %q does not exist", cfg.Register.DefaultRole)
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		Secret:          cloneBytes(cfg.JWT.Secret),
		Issuer:          cfg.JWT.Issuer,
		Audience:        cfg.JWT.Audience,
		AccessTTL:       cfg.JWT.AccessTTL,
		RefreshTTL:      cfg.JWT.RefreshTTL,
		VerificationTTL: cfg.JWT.VerificationTTL,
		ResetTTL:        cfg.JWT.ResetTTL,
		Leeway:          cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	var sink audit.Sink = &directorySink{store: b.directory}
	if b.auditSink != nil {
		sink = audit.MultiSink{sink, b.auditSink}
	}

	engine := &Engine{
		config:      cloneConfig(cfg),
		logger:      logger,
		redis:       b.redis,
		directory:   b.directory,
		registry:    registry,
		roleManager: roleManager,
		sessionStore: session.NewStore(
			b.redis,
			cfg.Session.RedisPrefix,
			cfg.Session.IndexTTL,
		),
		rateLimiter: rate.New(b.redis, rate.Config{
			Prefix:   cfg.Session.RedisPrefix,
			FailOpen: cfg.RateLimit.FailOpen,
		}),
		verificationStore: stores.NewEmailVerificationStore(b.redis, cfg.Session.RedisPrefix),
		policy:            password.NewPolicy(cfg.PasswordPolicy),
		hasher:            hasher,
		jwtManager:        jm,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:     cfg.Audit.Enabled,
			BufferSize:  cfg.Audit.BufferSize,
			DropIfFull:  cfg.Audit.DropIfFull,
			SinkTimeout: cfg.Audit.SinkTimeout,
		}, sink, logger),
		metrics: NewMetrics(cfg.Metrics),
		now:     time.Now,
	}

	b.built = true

	return engine, nil
}

func loadRoles(ctx context.Context, store *directory.Store) (map[string][]string, error) {
	list, err := store.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}

	roles := make(map[string][]string, len(list))
	for _, r := range list {
		if !r.IsActive {
			continue
		}
		roles[r.Name] = append([]string(nil), r.Permissions...)
	}
	return roles, nil
}
