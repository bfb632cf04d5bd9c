package stores

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrVerificationNotFound         = errors.New("verification record not found")
	ErrVerificationCodeMismatch     = errors.New("verification code mismatch")
	ErrVerificationAttemptsExceeded = errors.New("verification attempts exceeded")
	ErrVerificationRedisUnavailable = errors.New("verification redis unavailable")
)

const (
	verifyStatusNotFound int64 = 0
	verifyStatusExceeded int64 = 1
	verifyStatusMismatch int64 = 2
	verifyStatusOK       int64 = 3
)

// verifyCodeLua checks a code against the stored hash.
// KEYS[1] = record key
// ARGV[1] = provided code hash (hex)
// ARGV[2] = max attempts
//
// Returns {status, value}: value is the remaining attempts for a mismatch
// and the creation time (unix ms) for a match.
var verifyCodeLua = redis.NewScript(`
local vals = redis.call("HMGET", KEYS[1], "code_hash", "attempts", "created_at")
if not vals[1] then
  return {0, 0}
end

local attempts = tonumber(vals[2]) or 0
local max = tonumber(ARGV[2])
if attempts >= max then
  return {1, 0}
end

if vals[1] ~= ARGV[1] then
  attempts = redis.call("HINCRBY", KEYS[1], "attempts", 1)
  local remaining = max - attempts
  if remaining < 0 then
    remaining = 0
  end
  return {2, remaining}
end

redis.call("DEL", KEYS[1])
return {3, tonumber(vals[3]) or 0}
`)

// MismatchError reports a wrong code together with the attempts left.
type MismatchError struct {
	Remaining int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: %d attempts remaining", ErrVerificationCodeMismatch, e.Remaining)
}

func (e *MismatchError) Unwrap() error { return ErrVerificationCodeMismatch }

// EmailVerificationRecord is the observable state of a pending code.
type EmailVerificationRecord struct {
	Email     string
	Attempts  int
	CreatedAt time.Time
	ExpiresIn time.Duration
}

// EmailVerificationStore keeps one pending code per email address.
type EmailVerificationStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewEmailVerificationStore(redisClient redis.UniversalClient, prefix string) *EmailVerificationStore {
	if prefix == "" {
		prefix = "authcore"
	}
	return &EmailVerificationStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *EmailVerificationStore) key(email string) string {
	return s.prefix + ":email_verification:" + normalizeEmail(email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Save stores code for email, replacing any pending record. The TTL and
// attempt counter start over.
func (s *EmailVerificationStore) Save(ctx context.Context, email, code string, ttl time.Duration) error {
	if normalizeEmail(email) == "" || code == "" {
		return errors.New("verification record requires email and code")
	}
	if ttl <= 0 {
		return errors.New("verification ttl must be positive")
	}

	key := s.key(email)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"code_hash", hashCode(code),
			"attempts", 0,
			"created_at", time.Now().UnixMilli(),
		)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationRedisUnavailable, err)
	}
	return nil
}

// Verify checks code for email. A match consumes the record. A mismatch
// returns a *MismatchError; once maxAttempts mismatches have been recorded
// every call returns ErrVerificationAttemptsExceeded until the record is
// replaced or expires.
func (s *EmailVerificationStore) Verify(ctx context.Context, email, code string, maxAttempts int) (*EmailVerificationRecord, error) {
	if maxAttempts <= 0 {
		return nil, errors.New("verification max attempts must be positive")
	}

	res, err := verifyCodeLua.Run(ctx, s.redis,
		[]string{s.key(email)},
		hashCode(code),
		maxAttempts,
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationRedisUnavailable, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("%w: unexpected lua result", ErrVerificationRedisUnavailable)
	}

	switch res[0] {
	case verifyStatusNotFound:
		return nil, ErrVerificationNotFound
	case verifyStatusExceeded:
		return nil, ErrVerificationAttemptsExceeded
	case verifyStatusMismatch:
		return nil, &MismatchError{Remaining: int(res[1])}
	case verifyStatusOK:
		return &EmailVerificationRecord{
			Email:     normalizeEmail(email),
			CreatedAt: time.UnixMilli(res[1]),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown status %d", ErrVerificationRedisUnavailable, res[0])
	}
}

// Get returns the pending record for email without consuming it.
func (s *EmailVerificationStore) Get(ctx context.Context, email string) (*EmailVerificationRecord, error) {
	key := s.key(email)

	pipe := s.redis.Pipeline()
	fields := pipe.HMGet(ctx, key, "attempts", "created_at")
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationRedisUnavailable, err)
	}

	vals := fields.Val()
	if len(vals) != 2 || vals[1] == nil {
		return nil, ErrVerificationNotFound
	}

	rec := &EmailVerificationRecord{Email: normalizeEmail(email), ExpiresIn: ttl.Val()}
	if raw, ok := vals[0].(string); ok {
		rec.Attempts, _ = strconv.Atoi(raw)
	}
	if raw, ok := vals[1].(string); ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			rec.CreatedAt = time.UnixMilli(ms)
		}
	}
	return rec, nil
}

// Delete removes any pending record for email.
func (s *EmailVerificationStore) Delete(ctx context.Context, email string) error {
	if err := s.redis.Del(ctx, s.key(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationRedisUnavailable, err)
	}
	return nil
}
