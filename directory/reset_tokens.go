package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateResetToken records an issued reset token. ExpiresAt must be after
// CreatedAt; a zero CreatedAt is set to now.
func (s *Store) CreateResetToken(ctx context.Context, t *PasswordResetToken) error {
	if t == nil || t.Token == "" {
		return fmt.Errorf("%w: reset token requires a nonce", ErrInvalidRecord)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.ExpiresAt = t.ExpiresAt.UTC()
	if !t.ExpiresAt.After(t.CreatedAt) {
		return fmt.Errorf("%w: reset token must expire after creation", ErrInvalidRecord)
	}

	err := s.db.WithContext(ctx).Create(t).Error
	if IsDuplicateKey(err) {
		return ErrDuplicateKey
	}
	return err
}

// ConsumeResetToken marks token used if it is unused and unexpired at now,
// in a single conditional update. Any other state yields ErrNotFound.
func (s *Store) ConsumeResetToken(ctx context.Context, token string, now time.Time) (*PasswordResetToken, error) {
	now = now.UTC()
	db := s.db.WithContext(ctx)

	res := db.Model(&PasswordResetToken{}).
		Where("token = ? AND used_at IS NULL AND expires_at > ?", token, now).
		Update("used_at", now)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	var t PasswordResetToken
	if err := db.Where("token = ?", token).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// ResetTokenByNonce loads a reset token row.
func (s *Store) ResetTokenByNonce(ctx context.Context, token string) (*PasswordResetToken, error) {
	var t PasswordResetToken
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// InvalidateResetTokens marks every outstanding token of userID as used
// and returns how many were affected.
func (s *Store) InvalidateResetTokens(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&PasswordResetToken{}).
		Where("user_id = ? AND used_at IS NULL", userID).
		Update("used_at", now.UTC())
	return res.RowsAffected, res.Error
}
