package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
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

// Engine is the authentication orchestrator. It is immutable after Build
// and safe for concurrent use.
type Engine struct {
	config            Config
	logger            *zap.Logger
	redis             redis.UniversalClient
	directory         *directory.Store
	registry          *permission.Registry
	roleManager       *permission.RoleManager
	sessionStore      *session.Store
	rateLimiter       *rate.Limiter
	verificationStore *stores.EmailVerificationStore
	policy            *password.Policy
	hasher            *password.Hasher
	jwtManager        *jwt.Manager
	audit             *audit.Dispatcher
	metrics           *Metrics
	now               func() time.Time
}

// Close flushes and stops the audit dispatcher. It does not close the Redis
// client or the directory; their owner does.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of every counter.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Authenticate validates accessToken with the configured mode.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*AuthResult, error) {
	return e.Validate(ctx, accessToken, ModeInherit)
}

// Validate verifies an access token. In ModeStrict the session must also be
// live: a cache hit slides its TTL, a miss falls back to the directory and
// re-caches the session.
//
//	Performance: JWT-only 0 round trips; strict 1 EVALSHA on a cache hit.
func (e *Engine) Validate(ctx context.Context, accessToken string, mode ValidationMode) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, internalError(ErrEngineNotReady)
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	if mode == ModeInherit {
		mode = e.config.ValidationMode
	}
	if mode != ModeJWTOnly && mode != ModeStrict {
		return nil, internalError(ErrInvalidRouteMode)
	}

	claims, err := e.jwtManager.VerifyAccess(accessToken)
	if err != nil {
		return nil, invalidToken()
	}

	res := &AuthResult{
		UserID:      claims.Subject,
		Email:       claims.Email,
		Role:        claims.Role,
		Permissions: claims.Permissions,
		SessionID:   claims.SessionID,
		registry:    e.registry,
	}

	if mode == ModeStrict {
		snap, err := e.liveSession(ctx, claims.SessionID)
		if err != nil {
			return nil, err
		}
		if snap.UserID != claims.Subject {
			return nil, invalidToken()
		}
		res.Role = snap.Role
		res.Permissions = snap.Permissions
		res.Strict = true
	}

	res.Mask = e.roleManager.MaskFor(res.Role, res.Permissions)
	return res, nil
}

// liveSession resolves a session through the cache, falling back to the
// directory when the cache misses or is unavailable.
func (e *Engine) liveSession(ctx context.Context, sessionID string) (*session.Snapshot, error) {
	snap, err := e.sessionStore.Get(ctx, sessionID)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, session.ErrSessionNotFound) {
		e.logger.Warn("session cache unavailable, using directory",
			zap.Error(err),
		)
	}
	e.metricInc(MetricSessionCacheMiss)

	row, err := e.directory.SessionByToken(ctx, sessionID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, sessionNotFound()
		}
		return nil, internalError(err)
	}

	now := e.now().UTC()
	if !row.ExpiresAt.After(now) {
		return nil, sessionNotFound()
	}

	user, err := e.directory.UserByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, sessionNotFound()
		}
		return nil, internalError(err)
	}
	if !user.IsActive {
		return nil, accountInactive()
	}

	snap = e.snapshotFor(user, row.SessionToken, row.IsRememberMe, row.CreatedAt, row.ExpiresAt)
	e.cacheSession(ctx, snap, row.ExpiresAt.Sub(now))

	if err := e.directory.TouchSession(ctx, sessionID, now); err != nil {
		e.logger.Warn("session touch failed", zap.String("user_id", snap.UserID), zap.Error(err))
	}
	return snap, nil
}

/*
====================================
HELPERS
====================================
*/

// checkLimit runs one limiter check. A backend failure with fail-open
// configured is logged and admitted.
func (e *Engine) checkLimit(ctx context.Context, key string, p RateLimitPolicy) (rate.Result, error) {
	res, err := e.rateLimiter.Check(ctx, key, rate.Policy{
		MaxAttempts:   p.MaxAttempts,
		Window:        p.Window,
		BlockDuration: p.BlockDuration,
	})
	if err != nil {
		if res.Degraded && res.Allowed {
			e.metricInc(MetricRateLimitFailOpen)
			e.logger.Warn("rate limiter unavailable, failing open", zap.Error(err))
			return res, nil
		}
		return res, internalError(err)
	}
	if !res.Allowed {
		e.metricInc(MetricRateLimitHit)
	}
	return res, nil
}

func (e *Engine) resetLimit(ctx context.Context, key string) {
	if err := e.rateLimiter.Reset(ctx, key); err != nil {
		e.logger.Warn("rate limiter reset failed", zap.Error(err))
	}
}

func (e *Engine) userByID(ctx context.Context, userID string) (*directory.User, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, userNotFound()
	}
	user, err := e.directory.UserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, userNotFound()
		}
		return nil, internalError(err)
	}
	return user, nil
}

func (e *Engine) subjectFor(u *directory.User) jwt.Subject {
	return jwt.Subject{
		UserID:      u.ID.String(),
		Email:       u.Email,
		Role:        u.Role.Name,
		Permissions: append([]string(nil), u.Role.Permissions...),
	}
}

func (e *Engine) sessionTTL(rememberMe bool) time.Duration {
	if rememberMe {
		return e.config.Session.RememberMeTTL
	}
	return e.config.Session.TTL
}

func (e *Engine) snapshotFor(u *directory.User, sessionID string, rememberMe bool, created, expires time.Time) *session.Snapshot {
	return &session.Snapshot{
		SessionID:   sessionID,
		UserID:      u.ID.String(),
		Email:       u.Email,
		Username:    u.Username,
		Role:        u.Role.Name,
		Permissions: append([]string(nil), u.Role.Permissions...),
		RememberMe:  rememberMe,
		CreatedAt:   created,
		ExpiresAt:   expires,
	}
}

// cacheSession writes the snapshot best-effort. The directory row remains
// authoritative and strict validation re-caches on a miss.
func (e *Engine) cacheSession(ctx context.Context, snap *session.Snapshot, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := e.sessionStore.Put(ctx, snap, ttl); err != nil {
		e.logger.Warn("session cache write failed",
			zap.String("user_id", snap.UserID),
			zap.Error(err),
		)
	}
}

// revokeSessions deletes the given sessions from the directory (all of the
// user's except keep) and from the cache. The count is the number of
// directory rows removed.
func (e *Engine) revokeSessions(ctx context.Context, userID uuid.UUID, keep string) (int, error) {
	tokens, err := e.directory.DeleteUserSessions(ctx, userID, keep)
	if err != nil {
		return 0, internalError(err)
	}

	var cacheErr error
	if keep == "" {
		if _, err := e.sessionStore.RevokeAll(ctx, userID.String()); err != nil {
			cacheErr = err
		}
	}
	for _, token := range tokens {
		if _, err := e.sessionStore.Delete(ctx, token); err != nil {
			cacheErr = err
		}
	}
	if cacheErr != nil {
		e.logger.Warn("session cache revoke failed after directory delete",
			zap.String("user_id", userID.String()),
			zap.Int("sessions", len(tokens)),
			zap.Error(cacheErr),
		)
		return len(tokens), internalError(cacheErr)
	}
	return len(tokens), nil
}

func invalidToken() *Error {
	return newError(KindAuthentication, CodeInvalidToken, ErrInvalidToken, "invalid or expired token")
}

func sessionNotFound() *Error {
	return newError(KindNotFound, CodeSessionNotFound, ErrSessionNotFound, "session not found or expired")
}

func userNotFound() *Error {
	return newError(KindNotFound, CodeUserNotFound, ErrUserNotFound, "user not found")
}

func accountInactive() *Error {
	return newError(KindAuthorization, CodeAccountInactive, ErrAccountInactive, "account is inactive")
}
