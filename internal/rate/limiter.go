package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shuggg999/authcore/internal"
)

// KEYS[1] window zset, KEYS[2] block key
// ARGV[1] max attempts, ARGV[2] window ms, ARGV[3] block ms, ARGV[4] member nonce
// returns {allowed, remaining, reset_ms, blocked, now_ms}
const slidingWindowScript = `
local t = redis.call("TIME")
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
local max = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local block = tonumber(ARGV[3])

local blocked_until = redis.call("GET", KEYS[2])
if blocked_until then
  return {0, 0, tonumber(blocked_until), 1, now}
end

redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
local count = redis.call("ZCARD", KEYS[1])

local function reset_at()
  local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
  if oldest[2] then
    return tonumber(oldest[2]) + window
  end
  return now + window
end

if count >= max then
  if block > 0 then
    local until_ms = now + block
    redis.call("SET", KEYS[2], tostring(until_ms), "PX", block)
    return {0, 0, until_ms, 1, now}
  end
  return {0, 0, reset_at(), 0, now}
end

redis.call("ZADD", KEYS[1], now, tostring(now) .. ":" .. ARGV[4])
redis.call("PEXPIRE", KEYS[1], window)
return {1, max - count - 1, reset_at(), 0, now}
`

var slidingWindowLua = redis.NewScript(slidingWindowScript)

// Policy describes one limiter budget.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
	// BlockDuration, when positive, locks the key for that long once the
	// budget is exhausted.
	BlockDuration time.Duration
}

func (p Policy) validate() error {
	if p.MaxAttempts <= 0 || p.Window < time.Millisecond || p.BlockDuration < 0 {
		return ErrInvalidPolicy
	}
	return nil
}

// Result is the outcome of a single [Limiter.Check].
type Result struct {
	Allowed   bool
	Remaining int
	// ResetTime is when the next attempt will be admitted: the block expiry
	// for blocked keys, otherwise when the oldest attempt leaves the window.
	ResetTime time.Time
	Blocked   bool
	// Degraded is set when the result was produced without the backend.
	Degraded bool
}

// RetryAfter returns the wait until ResetTime relative to now, never
// negative.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Config holds limiter wiring.
type Config struct {
	Prefix   string
	FailOpen bool
}

// Limiter enforces sliding-window budgets using Redis sorted sets.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "authcore"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// The {key} hash tag keeps the window and block keys in one cluster slot,
// which the script requires.
func (l *Limiter) windowKey(key string) string {
	return l.config.Prefix + ":rate_limit:{" + key + "}"
}

func (l *Limiter) blockKey(key string) string {
	return l.windowKey(key) + ":blocked"
}

// Check evaluates and, when admitted, records one attempt against key.
//
// Backend failures return a wrapped ErrRedisUnavailable. With FailOpen the
// accompanying Result is allowed and marked Degraded; otherwise it is
// denied.
//
//	Performance: 1 EVALSHA.
func (l *Limiter) Check(ctx context.Context, key string, p Policy) (Result, error) {
	if err := p.validate(); err != nil {
		return Result{}, err
	}

	nonce, err := internal.NewNonce()
	if err != nil {
		return l.degraded(p), err
	}

	raw, err := slidingWindowLua.Run(ctx, l.redis,
		[]string{l.windowKey(key), l.blockKey(key)},
		p.MaxAttempts,
		p.Window.Milliseconds(),
		p.BlockDuration.Milliseconds(),
		nonce,
	).Int64Slice()
	if err != nil {
		return l.degraded(p), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(raw) != 5 {
		return l.degraded(p), fmt.Errorf("%w: unexpected script reply", ErrRedisUnavailable)
	}

	return Result{
		Allowed:   raw[0] == 1,
		Remaining: int(raw[1]),
		ResetTime: time.UnixMilli(raw[2]),
		Blocked:   raw[3] == 1,
	}, nil
}

// Reset clears both the window and any active block for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, l.windowKey(key), l.blockKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the number of recorded attempts for key, including ones
// that may already have left the window but not yet been trimmed.
func (l *Limiter) Attempts(ctx context.Context, key string) (int, error) {
	n, err := l.redis.ZCard(ctx, l.windowKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

func (l *Limiter) degraded(p Policy) Result {
	if !l.config.FailOpen {
		return Result{Allowed: false, Degraded: true}
	}
	return Result{
		Allowed:   true,
		Remaining: p.MaxAttempts,
		ResetTime: time.Now().Add(p.Window),
		Degraded:  true,
	}
}
