package session

import "time"

// Snapshot is the cached projection of an authenticated session. It is
// always reconstructable from the directory row and the owning user.
type Snapshot struct {
	SessionID   string    `json:"-"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
	RememberMe  bool      `json:"remember_me"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`

	// LastAccessed is maintained by the store from the Redis clock and is
	// not part of the JSON payload.
	LastAccessed time.Time `json:"-"`
}
