package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

// NormalizeEmail lowercases and trims an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser inserts u. A unique violation is reported as
// ErrDuplicateEmail or ErrDuplicateUsername depending on which column
// already holds the value.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if u == nil || u.RoleID == 0 {
		return fmt.Errorf("%w: user requires a role", ErrInvalidRecord)
	}
	u.Email = NormalizeEmail(u.Email)
	u.Username = strings.TrimSpace(u.Username)

	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(u).Error
	if err == nil {
		return nil
	}
	if !IsDuplicateKey(err) {
		return err
	}

	taken, lookupErr := s.EmailExists(ctx, u.Email)
	if lookupErr != nil {
		return errors.Join(ErrDuplicateKey, lookupErr)
	}
	if taken {
		return ErrDuplicateEmail
	}
	return ErrDuplicateUsername
}

// EmailExists reports whether any user holds email.
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&User{}).Where("email = ?", NormalizeEmail(email)).Count(&count).Error
	return count > 0, err
}

// UsernameExists reports whether any user holds username.
func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&User{}).Where("username = ?", strings.TrimSpace(username)).Count(&count).Error
	return count > 0, err
}

// UserByEmail loads a user and its role.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Preload("Role").Where("email = ?", NormalizeEmail(email)).First(&u).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// UserByID loads a user and its role.
func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Preload("Role").Where("id = ?", id).First(&u).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// UpdateUserFields applies a subset update in one statement. Column names
// are the database names, for example "email_verified" or "password_hash".
func (s *Store) UpdateUserFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	for col := range fields {
		switch col {
		case "id", "email", "username", "created_at":
			return fmt.Errorf("%w: column %s is immutable", ErrInvalidRecord, col)
		}
	}

	res := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user. Sessions and reset tokens cascade; audit rows
// keep the event with a cleared user id.
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	db := s.db.WithContext(ctx)

	// Applied explicitly as well, for dialects that do not enforce foreign keys.
	if err := db.Model(&AuditLog{}).Where("user_id = ?", id).Update("user_id", nil).Error; err != nil {
		return err
	}
	if err := db.Where("user_id = ?", id).Delete(&Session{}).Error; err != nil {
		return err
	}
	if err := db.Where("user_id = ?", id).Delete(&PasswordResetToken{}).Error; err != nil {
		return err
	}

	res := db.Where("id = ?", id).Delete(&User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
