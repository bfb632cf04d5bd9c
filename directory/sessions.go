package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateSession inserts a session row.
func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	if sess == nil || sess.SessionToken == "" || sess.RefreshTokenHash == "" || sess.UserID == uuid.Nil {
		return fmt.Errorf("%w: session requires user, token and refresh hash", ErrInvalidRecord)
	}
	if sess.LastAccessedAt.IsZero() {
		sess.LastAccessedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Create(sess).Error
	if IsDuplicateKey(err) {
		return ErrDuplicateKey
	}
	return err
}

// SessionByToken loads a session row regardless of expiry; callers compare
// ExpiresAt themselves.
func (s *Store) SessionByToken(ctx context.Context, token string) (*Session, error) {
	var sess Session
	if err := s.db.WithContext(ctx).Where("session_token = ?", token).First(&sess).Error; err != nil {
		return nil, notFound(err)
	}
	return &sess, nil
}

// ListUserSessions returns the unexpired sessions of a user, most recently
// used first.
func (s *Store) ListUserSessions(ctx context.Context, userID uuid.UUID, now time.Time) ([]Session, error) {
	var sessions []Session
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, now.UTC()).
		Order("last_accessed_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// TouchSession bumps last_accessed_at.
func (s *Store) TouchSession(ctx context.Context, token string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&Session{}).
		Where("session_token = ?", token).
		Update("last_accessed_at", at.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ExtendSession moves expires_at forward and bumps last_accessed_at.
func (s *Store) ExtendSession(ctx context.Context, token string, at, expiresAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&Session{}).
		Where("session_token = ?", token).
		Updates(map[string]any{
			"last_accessed_at": at.UTC(),
			"expires_at":       expiresAt.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RotateSessionRefresh swaps the stored refresh fingerprint only if it
// still equals oldHash. ErrNotFound means the session is gone or the old
// token was already rotated away.
func (s *Store) RotateSessionRefresh(ctx context.Context, token, oldHash, newHash string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&Session{}).
		Where("session_token = ? AND refresh_token_hash = ?", token, oldHash).
		Updates(map[string]any{
			"refresh_token_hash": newHash,
			"last_accessed_at":   at.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSession removes one session row and reports whether it existed.
func (s *Store) DeleteSession(ctx context.Context, token string) (bool, error) {
	res := s.db.WithContext(ctx).Where("session_token = ?", token).Delete(&Session{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteUserSessions removes every session of userID except keepToken
// (which may be empty) and returns the tokens it deleted.
func (s *Store) DeleteUserSessions(ctx context.Context, userID uuid.UUID, keepToken string) ([]string, error) {
	db := s.db.WithContext(ctx)

	q := db.Model(&Session{}).Where("user_id = ?", userID)
	if keepToken != "" {
		q = q.Where("session_token <> ?", keepToken)
	}

	var tokens []string
	if err := q.Pluck("session_token", &tokens).Error; err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return []string{}, nil
	}

	if err := db.Where("user_id = ? AND session_token IN ?", userID, tokens).Delete(&Session{}).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

// DeleteExpiredSessions purges rows that expired before cutoff.
func (s *Store) DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", cutoff.UTC()).Delete(&Session{})
	return res.RowsAffected, res.Error
}
