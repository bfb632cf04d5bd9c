package authcore

import (
	"context"
	"errors"

	"github.com/shuggg999/authcore/directory"
	"github.com/shuggg999/authcore/internal/stores"
)

// VerifyEmail checks a pending verification code. A match consumes the
// code and marks the account verified, so repeating the same call reports
// INVALID_VERIFICATION_CODE. A mismatch counts against the attempt budget
// without touching the code's expiry.
func (e *Engine) VerifyEmail(ctx context.Context, email, code string) (*UserSummary, error) {
	if e == nil || e.verificationStore == nil {
		return nil, internalError(ErrEngineNotReady)
	}

	email = directory.NormalizeEmail(email)
	if email == "" || code == "" {
		return nil, validationError(map[string]string{"code": "email and code are required"})
	}

	_, err := e.verificationStore.Verify(ctx, email, code, e.config.EmailVerification.MaxAttempts)
	if err != nil {
		var mismatch *stores.MismatchError
		switch {
		case errors.Is(err, stores.ErrVerificationNotFound):
			e.verificationFailed(ctx, email, reasonRecordNotFound)
			return nil, invalidVerificationCode()
		case errors.Is(err, stores.ErrVerificationAttemptsExceeded):
			e.metricInc(MetricEmailVerificationAttemptsExceeded)
			e.verificationFailed(ctx, email, reasonAttemptsExceeded)
			return nil, newError(KindRateLimited, CodeVerificationAttemptsExceeded, ErrVerificationAttemptsExceeded,
				"too many verification attempts, request a new code")
		case errors.As(err, &mismatch):
			e.verificationFailed(ctx, email, reasonCodeMismatch)
			verr := invalidVerificationCode()
			verr.RemainingAttempts = mismatch.Remaining
			return nil, verr
		default:
			return nil, internalError(err)
		}
	}

	user, err := e.directory.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, userNotFound()
		}
		return nil, internalError(err)
	}

	if !user.EmailVerified {
		if err := e.directory.UpdateUserFields(ctx, user.ID, map[string]any{"email_verified": true}); err != nil {
			return nil, internalError(err)
		}
		user.EmailVerified = true
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, directory.ActionEmailVerification, AuditSuccess, user.ID.String(), "", map[string]any{
		"email": email,
	})

	s := summarize(user)
	return &s, nil
}

func (e *Engine) verificationFailed(ctx context.Context, email, reason string) {
	e.metricInc(MetricEmailVerificationFailure)
	e.emitAudit(ctx, directory.ActionEmailVerification, AuditFailure, "", "", map[string]any{
		"email":  email,
		"reason": reason,
	})
}

// ResendVerification replaces the pending code of an unverified account.
// The new code gets a fresh TTL and attempt budget.
func (e *Engine) ResendVerification(ctx context.Context, email string) (*ResendResult, error) {
	if e == nil || e.verificationStore == nil {
		return nil, internalError(ErrEngineNotReady)
	}

	email = directory.NormalizeEmail(email)
	if email == "" {
		return nil, validationError(map[string]string{"email": "email is required"})
	}

	user, err := e.directory.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, userNotFound()
		}
		return nil, internalError(err)
	}
	if user.EmailVerified {
		return nil, newError(KindConflict, CodeEmailAlreadyVerified, ErrEmailAlreadyVerified, "email is already verified")
	}

	limit, err := e.checkLimit(ctx, "verification:"+email, e.config.RateLimit.Verification)
	if err != nil {
		return nil, err
	}
	if !limit.Allowed {
		return nil, rateLimited(limit.ResetTime)
	}

	code, err := e.issueVerificationCode(ctx, email)
	if err != nil {
		return nil, internalError(err)
	}

	e.metricInc(MetricEmailVerificationResent)

	out := &ResendResult{ExpiresAt: e.now().UTC().Add(e.config.EmailVerification.CodeTTL)}
	if e.config.Register.ExposeDebugCode {
		out.DebugCode = code
	}
	return out, nil
}

func invalidVerificationCode() *Error {
	return newError(KindNotFound, CodeInvalidVerificationCode, ErrInvalidVerificationCode, "invalid or expired verification code")
}
