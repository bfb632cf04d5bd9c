package rate

import "errors"

var (
	// ErrRedisUnavailable wraps limiter backend failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidPolicy is returned for non-positive attempt or window values.
	ErrInvalidPolicy = errors.New("invalid rate limit policy")
)
