package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shuggg999/authcore/directory"
	"github.com/shuggg999/authcore/internal"
	"github.com/shuggg999/authcore/session"
)

// Login authenticates an email and password and opens a session.
//
// Failures on the credential path are deliberately uniform: an unknown
// email and a wrong password both return INVALID_CREDENTIALS. Every
// outcome writes a login audit entry with the failure reason.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if e == nil || e.directory == nil {
		return nil, internalError(ErrEngineNotReady)
	}

	email := directory.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, validationError(map[string]string{"credentials": "email and password are required"})
	}

	limitKey := "login:" + email
	limit, err := e.checkLimit(ctx, limitKey, e.config.RateLimit.Login)
	if err != nil {
		return nil, err
	}
	if !limit.Allowed {
		e.metricInc(MetricLoginRateLimited)
		e.auditLogin(ctx, AuditBlocked, "", email, reasonRateLimited)
		return nil, rateLimited(limit.ResetTime)
	}

	user, err := e.directory.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			e.metricInc(MetricLoginFailure)
			e.auditLogin(ctx, AuditFailure, "", email, reasonUserNotFound)
			return nil, invalidCredentials()
		}
		return nil, internalError(err)
	}
	userID := user.ID.String()

	// Accounts without a password hash (external provider only) cannot
	// log in here.
	if !user.HasPassword() || !e.hasher.Verify(req.Password, *user.PasswordHash) {
		e.metricInc(MetricLoginFailure)
		e.auditLogin(ctx, AuditFailure, userID, email, reasonInvalidPassword)
		return nil, invalidCredentials()
	}

	if !user.IsActive {
		e.metricInc(MetricLoginInactive)
		e.auditLogin(ctx, AuditFailure, userID, email, reasonAccountInactive)
		return nil, accountInactive()
	}

	if e.config.EmailVerification.RequireForLogin && !user.EmailVerified {
		e.metricInc(MetricLoginFailure)
		e.auditLogin(ctx, AuditFailure, userID, email, reasonEmailNotVerified)
		return nil, newError(KindAuthorization, CodeEmailNotVerified, ErrEmailNotVerified, "email address is not verified")
	}

	e.resetLimit(ctx, limitKey)

	if e.config.Password.UpgradeOnLogin && e.hasher.NeedsRehash(*user.PasswordHash) {
		e.upgradeHash(ctx, user, req.Password)
	}

	pair, err := e.jwtManager.IssuePair(e.subjectFor(user))
	if err != nil {
		return nil, internalError(err)
	}

	now := e.now().UTC()
	ttl := e.sessionTTL(req.RememberMe)
	expiresAt := now.Add(ttl)

	row := &directory.Session{
		UserID:           user.ID,
		SessionToken:     pair.SessionID,
		RefreshTokenHash: internal.HashToken(pair.RefreshToken),
		DeviceInfo:       req.DeviceInfo,
		IPAddress:        truncate(clientIPFromContext(ctx), 45),
		UserAgent:        truncate(userAgentFromContext(ctx), 512),
		IsRememberMe:     req.RememberMe,
		ExpiresAt:        expiresAt,
		CreatedAt:        now,
		LastAccessedAt:   now,
	}
	if err := e.directory.CreateSession(ctx, row); err != nil {
		return nil, internalError(err)
	}
	e.metricInc(MetricSessionCreated)

	e.cacheSession(ctx, e.snapshotFor(user, pair.SessionID, req.RememberMe, now, expiresAt), ttl)

	if err := e.directory.UpdateUserFields(ctx, user.ID, map[string]any{"last_login_at": now}); err != nil {
		e.logger.Warn("last login update failed", zap.String("user_id", userID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, directory.ActionLogin, AuditSuccess, userID, pair.SessionID, map[string]any{
		"email":       email,
		"reason":      reasonSuccess,
		"remember_me": req.RememberMe,
	})

	return &LoginResult{
		User:             summarize(user),
		Tokens:           *pair,
		SessionExpiresAt: expiresAt,
	}, nil
}

func (e *Engine) auditLogin(ctx context.Context, result, userID, email, reason string) {
	e.emitAudit(ctx, directory.ActionLogin, result, userID, "", map[string]any{
		"email":  email,
		"reason": reason,
	})
}

// upgradeHash replaces a legacy or weaker hash after a verified login.
// Failure only costs the upgrade.
func (e *Engine) upgradeHash(ctx context.Context, user *directory.User, plaintext string) {
	encoded, err := e.hasher.Hash(plaintext)
	if err == nil {
		err = e.directory.UpdateUserFields(ctx, user.ID, map[string]any{"password_hash": encoded})
	}
	if err != nil {
		e.logger.Warn("password rehash failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return
	}
	user.PasswordHash = &encoded
	e.metricInc(MetricPasswordRehashed)
}

// Refresh exchanges a refresh token for a new access token bound to the
// same session. The session must still exist and the presented token must
// be the one stored for it. With Session.RefreshRotation a new refresh
// token replaces the old one; a stale refresh token then revokes the
// session.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, internalError(ErrEngineNotReady)
	}

	claims, err := e.jwtManager.VerifyRefresh(refreshToken)
	if err != nil {
		e.refreshFailed(ctx, "", "", reasonInvalidToken)
		return nil, invalidRefreshToken()
	}
	sid := claims.SessionID

	user, err := e.userByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.refreshFailed(ctx, "", sid, reasonUserNotFound)
		}
		return nil, err
	}
	userID := user.ID.String()
	if !user.IsActive {
		e.refreshFailed(ctx, userID, sid, reasonAccountInactive)
		return nil, userNotFound()
	}

	row, err := e.directory.SessionByToken(ctx, sid)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			e.refreshFailed(ctx, userID, sid, reasonSessionNotFound)
			return nil, sessionNotFound()
		}
		return nil, internalError(err)
	}
	if row.UserID != user.ID {
		e.refreshFailed(ctx, userID, sid, reasonSessionNotFound)
		return nil, sessionNotFound()
	}

	oldHash := internal.HashToken(refreshToken)
	if row.RefreshTokenHash != oldHash {
		// A superseded refresh token is being replayed.
		if _, err := e.revokeSession(ctx, sid); err != nil {
			e.logger.Warn("revoke after refresh replay failed", zap.String("user_id", userID), zap.Error(err))
		}
		e.refreshFailed(ctx, userID, sid, reasonRefreshMismatch)
		return nil, invalidRefreshToken()
	}

	now := e.now().UTC()
	if err := e.ensureSessionLive(ctx, user, row, now); err != nil {
		e.refreshFailed(ctx, userID, sid, reasonSessionNotFound)
		return nil, err
	}

	pair, err := e.jwtManager.RotateAccess(refreshToken, e.subjectFor(user))
	if err != nil {
		e.refreshFailed(ctx, userID, sid, reasonInvalidToken)
		return nil, invalidRefreshToken()
	}

	out := &RefreshResult{
		AccessToken: pair.AccessToken,
		TokenType:   pair.TokenType,
		ExpiresIn:   pair.ExpiresIn,
		ExpiresAt:   pair.ExpiresAt,
	}

	if e.config.Session.RefreshRotation {
		next, _, err := e.jwtManager.IssueRefresh(userID, sid)
		if err != nil {
			return nil, internalError(err)
		}
		if err := e.directory.RotateSessionRefresh(ctx, sid, oldHash, internal.HashToken(next), now); err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				// Lost a race with a concurrent refresh of the same token.
				e.refreshFailed(ctx, userID, sid, reasonRefreshMismatch)
				return nil, invalidRefreshToken()
			}
			return nil, internalError(err)
		}
		out.RefreshToken = next
		e.metricInc(MetricRefreshRotated)
	}

	ttl := e.sessionTTL(row.IsRememberMe)
	if err := e.directory.ExtendSession(ctx, sid, now, now.Add(ttl)); err != nil {
		e.logger.Warn("session extend failed", zap.String("user_id", userID), zap.Error(err))
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, directory.ActionRefresh, AuditSuccess, userID, sid, map[string]any{
		"rotated": e.config.Session.RefreshRotation,
	})
	return out, nil
}

// ensureSessionLive accepts a session whose cache entry exists (sliding it)
// or, on a cache miss, whose directory row has not expired yet, in which
// case the entry is rebuilt.
func (e *Engine) ensureSessionLive(ctx context.Context, user *directory.User, row *directory.Session, now time.Time) error {
	_, err := e.sessionStore.Get(ctx, row.SessionToken)
	if err == nil {
		return nil
	}
	if !errors.Is(err, session.ErrSessionNotFound) {
		e.logger.Warn("session cache unavailable, using directory", zap.Error(err))
	}

	if !row.ExpiresAt.After(now) {
		return sessionNotFound()
	}
	snap := e.snapshotFor(user, row.SessionToken, row.IsRememberMe, row.CreatedAt, row.ExpiresAt)
	e.cacheSession(ctx, snap, row.ExpiresAt.Sub(now))
	return nil
}

func (e *Engine) refreshFailed(ctx context.Context, userID, sessionID, reason string) {
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, directory.ActionRefresh, AuditFailure, userID, sessionID, map[string]any{
		"reason": reason,
	})
}

// Logout revokes one session, or with logoutAll every session of the
// session's owner. The owner is resolved from the cache first and the
// directory second.
func (e *Engine) Logout(ctx context.Context, sessionID string, logoutAll bool) (*LogoutResult, error) {
	if e == nil || e.directory == nil {
		return nil, internalError(ErrEngineNotReady)
	}
	if sessionID == "" {
		return nil, sessionNotFound()
	}

	userID, err := e.sessionOwner(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var revoked int
	if logoutAll {
		revoked, err = e.revokeSessions(ctx, userID, "")
	} else {
		revoked, err = e.revokeSession(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}

	if logoutAll {
		e.metricInc(MetricLogoutAll)
	} else {
		e.metricInc(MetricLogout)
	}
	e.emitAudit(ctx, directory.ActionLogout, AuditSuccess, userID.String(), sessionID, map[string]any{
		"logout_all": logoutAll,
		"revoked":    revoked,
	})

	return &LogoutResult{LogoutAll: logoutAll, Revoked: revoked}, nil
}

func (e *Engine) sessionOwner(ctx context.Context, sessionID string) (uuid.UUID, error) {
	snap, err := e.sessionStore.Peek(ctx, sessionID)
	if err == nil {
		if uid, perr := uuid.Parse(snap.UserID); perr == nil {
			return uid, nil
		}
	} else if !errors.Is(err, session.ErrSessionNotFound) {
		e.logger.Warn("session cache unavailable, using directory", zap.Error(err))
	}

	row, err := e.directory.SessionByToken(ctx, sessionID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return uuid.Nil, sessionNotFound()
		}
		return uuid.Nil, internalError(err)
	}
	return row.UserID, nil
}

// revokeSession deletes one session from the directory and the cache.
func (e *Engine) revokeSession(ctx context.Context, sessionID string) (int, error) {
	deleted, err := e.directory.DeleteSession(ctx, sessionID)
	if err != nil {
		return 0, internalError(err)
	}
	cached, err := e.sessionStore.Delete(ctx, sessionID)
	if err != nil {
		e.logger.Warn("session cache delete failed after directory delete", zap.Error(err))
		return 0, internalError(err)
	}
	if deleted || cached {
		return 1, nil
	}
	return 0, nil
}

func invalidRefreshToken() *Error {
	return newError(KindAuthentication, CodeInvalidRefreshToken, ErrInvalidRefreshToken, "invalid or expired refresh token")
}
