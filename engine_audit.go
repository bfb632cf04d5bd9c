package authcore

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/shuggg999/authcore/directory"
	"github.com/shuggg999/authcore/internal/audit"
)

// Audit reasons recorded in details.reason.
const (
	reasonRateLimited       = "rate_limited"
	reasonUserNotFound      = "user_not_found"
	reasonInvalidPassword   = "invalid_password"
	reasonAccountInactive   = "account_inactive"
	reasonEmailNotVerified  = "email_not_verified"
	reasonSuccess           = "success"
	reasonInvalidToken      = "invalid_token"
	reasonSessionNotFound   = "session_not_found"
	reasonRefreshMismatch   = "refresh_mismatch"
	reasonCodeMismatch      = "code_mismatch"
	reasonAttemptsExceeded  = "attempts_exceeded"
	reasonRecordNotFound    = "record_not_found"
	reasonWeakPassword      = "weak_password"
	reasonPasswordReuse     = "password_reuse"
	reasonTokenUsedOrExpire = "token_used_or_expired"
)

// emitAudit hands an event to the dispatcher. It never blocks the flow
// beyond the dispatcher's own buffering policy and never fails it.
func (e *Engine) emitAudit(ctx context.Context, action, result, userID, sessionID string, details map[string]any) {
	if e == nil || e.audit == nil {
		return
	}

	e.audit.Emit(ctx, audit.Event{
		Timestamp: e.now().UTC(),
		Action:    action,
		Result:    result,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Details:   details,
	})
}

// directorySink persists audit events as directory audit rows.
type directorySink struct {
	store *directory.Store
}

func (s *directorySink) Emit(ctx context.Context, event audit.Event) error {
	entry := &directory.AuditLog{
		Action:    event.Action,
		Result:    event.Result,
		IPAddress: truncate(event.IP, 45),
		UserAgent: truncate(event.UserAgent, 512),
		CreatedAt: event.Timestamp,
	}
	if event.UserID != "" {
		if id, err := uuid.Parse(event.UserID); err == nil {
			entry.UserID = &id
		}
	}

	details := make(map[string]any, len(event.Details)+1)
	for k, v := range event.Details {
		details[k] = v
	}
	if event.SessionID != "" {
		details["session_id"] = event.SessionID
	}
	if len(details) > 0 {
		entry.Details = details
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	return s.store.AppendAudit(ctx, entry)
}

// truncate caps s at n bytes without splitting a rune. Invalid UTF-8 is
// replaced first since client metadata goes into text columns.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
