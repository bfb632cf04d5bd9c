package authcore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shuggg999/authcore/directory"
	"github.com/shuggg999/authcore/password"
)

// CurrentUser returns the profile of userID.
func (e *Engine) CurrentUser(ctx context.Context, userID string) (*UserSummary, error) {
	user, err := e.userByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s := summarize(user)
	return &s, nil
}

// ListSessions returns the unexpired sessions of userID. currentSessionID
// marks the caller's own session and may be empty.
func (e *Engine) ListSessions(ctx context.Context, userID, currentSessionID string) ([]SessionInfo, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, userNotFound()
	}

	rows, err := e.directory.ListUserSessions(ctx, uid, e.now())
	if err != nil {
		return nil, internalError(err)
	}

	out := make([]SessionInfo, 0, len(rows))
	for _, row := range rows {
		out = append(out, SessionInfo{
			SessionID:      row.SessionToken,
			IPAddress:      row.IPAddress,
			UserAgent:      row.UserAgent,
			DeviceInfo:     row.DeviceInfo,
			RememberMe:     row.IsRememberMe,
			CreatedAt:      row.CreatedAt,
			LastAccessedAt: row.LastAccessedAt,
			ExpiresAt:      row.ExpiresAt,
			Current:        row.SessionToken == currentSessionID,
		})
	}
	return out, nil
}

// CheckRateLimit counts one request against the generic API budget of key.
func (e *Engine) CheckRateLimit(ctx context.Context, key string) (RateLimitStatus, error) {
	res, err := e.checkLimit(ctx, "api:"+key, e.config.RateLimit.API)
	status := RateLimitStatus{
		Allowed:   res.Allowed,
		Remaining: res.Remaining,
		ResetTime: res.ResetTime,
		Blocked:   res.Blocked,
		Degraded:  res.Degraded,
	}
	if err != nil {
		return status, err
	}
	if !res.Allowed {
		return status, rateLimited(res.ResetTime)
	}
	return status, nil
}

// Health pings Redis and the directory.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	var h HealthStatus

	latency, err := e.sessionStore.Ping(ctx)
	h.RedisLatency = latency
	if err != nil {
		h.RedisError = err.Error()
	}

	start := time.Now()
	if err := e.directory.Ping(ctx); err != nil {
		h.DirectoryError = err.Error()
	}
	h.DirectoryLatency = time.Since(start)

	h.Healthy = h.RedisError == "" && h.DirectoryError == ""
	return h
}

// CheckPasswordStrength scores a candidate password without side effects.
func (e *Engine) CheckPasswordStrength(plaintext, username, email string) password.Result {
	return e.policy.Validate(plaintext, username, email)
}

// ActiveSessionCount returns how many cached sessions userID holds.
func (e *Engine) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, userNotFound()
	}
	ids, err := e.sessionStore.ActiveSessionIDs(ctx, userID)
	if err != nil {
		return 0, internalError(err)
	}
	return len(ids), nil
}

// LoginAttempts returns the attempts recorded in the current login window
// of email.
func (e *Engine) LoginAttempts(ctx context.Context, email string) (int, error) {
	email = directory.NormalizeEmail(email)
	if email == "" {
		return 0, nil
	}
	n, err := e.rateLimiter.Attempts(ctx, "login:"+email)
	if err != nil {
		return 0, internalError(err)
	}
	return n, nil
}
