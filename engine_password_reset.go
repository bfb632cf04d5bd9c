package authcore

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shuggg999/authcore/directory"
)

// RequestPasswordReset issues a single-use reset token for an active
// account. The result is the same whether or not the address exists;
// delivery of the token is left to the caller.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (*PasswordResetRequestResult, error) {
	if e == nil || e.directory == nil {
		return nil, internalError(ErrEngineNotReady)
	}

	email = directory.NormalizeEmail(email)
	if email == "" || !emailPattern.MatchString(email) {
		return nil, validationError(map[string]string{"email": "email format is invalid"})
	}

	limit, err := e.checkLimit(ctx, "reset:"+email, e.config.RateLimit.PasswordReset)
	if err != nil {
		return nil, err
	}
	if !limit.Allowed {
		e.emitAudit(ctx, directory.ActionPasswordReset, AuditBlocked, "", "", map[string]any{
			"email":  email,
			"reason": reasonRateLimited,
			"step":   "request",
		})
		return nil, rateLimited(limit.ResetTime)
	}

	e.metricInc(MetricPasswordResetRequest)
	out := &PasswordResetRequestResult{Sent: true}

	user, err := e.directory.UserByEmail(ctx, email)
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		return nil, internalError(err)
	}
	if user == nil || !user.IsActive {
		reason := reasonUserNotFound
		if user != nil {
			reason = reasonAccountInactive
		}
		e.emitAudit(ctx, directory.ActionPasswordReset, AuditFailure, "", "", map[string]any{
			"email":  email,
			"reason": reason,
			"step":   "request",
		})
		return out, nil
	}
	userID := user.ID.String()

	now := e.now().UTC()
	if _, err := e.directory.InvalidateResetTokens(ctx, user.ID, now); err != nil {
		return nil, internalError(err)
	}

	tok, err := e.jwtManager.IssuePasswordReset(userID, email)
	if err != nil {
		return nil, internalError(err)
	}
	if err := e.directory.CreateResetToken(ctx, &directory.PasswordResetToken{
		UserID:    user.ID,
		Token:     tok.Nonce,
		ExpiresAt: tok.ExpiresAt,
		CreatedAt: now,
	}); err != nil {
		return nil, internalError(err)
	}

	e.emitAudit(ctx, directory.ActionPasswordReset, AuditSuccess, userID, "", map[string]any{
		"email": email,
		"step":  "request",
	})

	if e.config.PasswordReset.ExposeDebugToken {
		out.DebugToken = tok.Token
	}
	return out, nil
}

// ResetPassword sets a new password using a token from
// RequestPasswordReset. The token is consumed only once the new password
// passes the policy; every session of the account is then revoked.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if e == nil || e.directory == nil {
		return internalError(ErrEngineNotReady)
	}

	claims, err := e.jwtManager.VerifyPasswordReset(token)
	if err != nil {
		e.resetFailed(ctx, "", reasonInvalidToken)
		return invalidResetToken()
	}

	user, err := e.userByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.resetFailed(ctx, "", reasonUserNotFound)
			return invalidResetToken()
		}
		return err
	}
	userID := user.ID.String()
	if !user.IsActive {
		e.resetFailed(ctx, userID, reasonAccountInactive)
		return invalidResetToken()
	}

	if res := e.policy.Validate(newPassword, user.Username, user.Email); !res.Valid {
		e.resetFailed(ctx, userID, reasonWeakPassword)
		return weakPassword(res.Errors)
	}

	rt, err := e.directory.ConsumeResetToken(ctx, claims.ID, e.now().UTC())
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			e.resetFailed(ctx, userID, reasonTokenUsedOrExpire)
			return invalidResetToken()
		}
		return internalError(err)
	}
	if rt.UserID != user.ID {
		e.resetFailed(ctx, userID, reasonInvalidToken)
		return invalidResetToken()
	}

	if err := e.setPassword(ctx, user.ID, newPassword); err != nil {
		return err
	}

	revoked, err := e.revokeSessions(ctx, user.ID, "")
	if err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, directory.ActionPasswordReset, AuditSuccess, userID, "", map[string]any{
		"step":             "confirm",
		"sessions_revoked": revoked,
	})
	return nil
}

func (e *Engine) resetFailed(ctx context.Context, userID, reason string) {
	e.metricInc(MetricPasswordResetFailure)
	e.emitAudit(ctx, directory.ActionPasswordReset, AuditFailure, userID, "", map[string]any{
		"reason": reason,
		"step":   "confirm",
	})
}

// ChangePassword replaces the password of an authenticated user. Every
// other session of the user is revoked; sessionID, the caller's own
// session, survives.
func (e *Engine) ChangePassword(ctx context.Context, userID, sessionID, current, next string) error {
	if e == nil || e.directory == nil {
		return internalError(ErrEngineNotReady)
	}

	user, err := e.userByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsActive {
		return accountInactive()
	}

	limitKey := "change_password:" + user.ID.String()
	limit, err := e.checkLimit(ctx, limitKey, e.config.RateLimit.ChangePassword)
	if err != nil {
		return err
	}
	if !limit.Allowed {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, directory.ActionPasswordChange, AuditBlocked, userID, sessionID, map[string]any{
			"reason": reasonRateLimited,
		})
		return rateLimited(limit.ResetTime)
	}

	if !user.HasPassword() || !e.hasher.Verify(current, *user.PasswordHash) {
		e.changeFailed(ctx, userID, sessionID, reasonInvalidPassword)
		return invalidCredentials()
	}

	if next == current {
		e.changeFailed(ctx, userID, sessionID, reasonPasswordReuse)
		return newError(KindPolicy, CodePasswordReuse, ErrPasswordReuse, "new password must differ from the current one")
	}

	if res := e.policy.Validate(next, user.Username, user.Email); !res.Valid {
		e.changeFailed(ctx, userID, sessionID, reasonWeakPassword)
		return weakPassword(res.Errors)
	}

	if err := e.setPassword(ctx, user.ID, next); err != nil {
		return err
	}

	e.resetLimit(ctx, limitKey)

	revoked, err := e.revokeSessions(ctx, user.ID, sessionID)
	if err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, directory.ActionPasswordChange, AuditSuccess, userID, sessionID, map[string]any{
		"sessions_revoked": revoked,
	})
	return nil
}

func (e *Engine) changeFailed(ctx context.Context, userID, sessionID, reason string) {
	e.metricInc(MetricPasswordChangeFailure)
	e.emitAudit(ctx, directory.ActionPasswordChange, AuditFailure, userID, sessionID, map[string]any{
		"reason": reason,
	})
}

func (e *Engine) setPassword(ctx context.Context, id uuid.UUID, plaintext string) error {
	encoded, err := e.hasher.Hash(plaintext)
	if err != nil {
		return internalError(err)
	}
	if err := e.directory.UpdateUserFields(ctx, id, map[string]any{"password_hash": encoded}); err != nil {
		e.logger.Error("password update failed", zap.String("user_id", id.String()), zap.Error(err))
		return internalError(err)
	}
	return nil
}

func invalidResetToken() *Error {
	return newError(KindNotFound, CodeInvalidResetToken, ErrInvalidResetToken, "invalid or expired reset token")
}
