package directory

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a lookup or conditional update matched no row.
	ErrNotFound = errors.New("directory: record not found")
	// ErrDuplicateEmail is returned when a user insert collides on email.
	ErrDuplicateEmail = errors.New("directory: email already registered")
	// ErrDuplicateUsername is returned when a user insert collides on username.
	ErrDuplicateUsername = errors.New("directory: username already taken")
	// ErrDuplicateKey covers unique violations on other tables.
	ErrDuplicateKey = errors.New("directory: duplicate key")
	// ErrInvalidRecord is returned for records that violate a model invariant
	// before they reach the database.
	ErrInvalidRecord = errors.New("directory: invalid record")
)

// IsDuplicateKey reports whether err is a unique-constraint violation from
// any supported dialect.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicateKey) {
		return true
	}

	msg := err.Error()
	switch {
	// PostgreSQL (23505)
	case strings.Contains(msg, "duplicate key value violates unique constraint"):
		return true
	// MySQL (1062)
	case strings.Contains(msg, "Error 1062"):
		return true
	// SQLite (2067)
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return true
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
