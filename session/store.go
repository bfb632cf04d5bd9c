package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when no live cache entry exists.
var ErrSessionNotFound = errors.New("session not found")

// ErrRedisUnavailable wraps every backend failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrCorruptSession is returned when a cached payload cannot be decoded.
var ErrCorruptSession = errors.New("session payload corrupt")

// DefaultIndexTTL bounds the lifetime of the per-user session index.
const DefaultIndexTTL = 30 * 24 * time.Hour

const (
	fieldData         = "data"
	fieldUserID       = "uid"
	fieldTTL          = "ttl"
	fieldLastAccessed = "last_accessed"
)

// KEYS[1] session hash
// returns {data, now_ms} or nil
const getSessionScript = `
local vals = redis.call("HMGET", KEYS[1], "data", "ttl")
if not vals[1] then
  return false
end
local t = redis.call("TIME")
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
local ttl = tonumber(vals[2])
if ttl and ttl > 0 then
  redis.call("PEXPIRE", KEYS[1], ttl)
end
redis.call("HSET", KEYS[1], "last_accessed", tostring(now))
return {vals[1], tostring(now)}
`

var getSessionLua = redis.NewScript(getSessionScript)

// KEYS[1] session hash
// returns {existed, uid}
const deleteSessionScript = `
local uid = redis.call("HGET", KEYS[1], "uid")
local existed = redis.call("DEL", KEYS[1])
return {existed, uid or ""}
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store is the Redis session cache.
type Store struct {
	redis    redis.UniversalClient
	prefix   string
	indexTTL time.Duration
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the key namespace; indexTTL falls back to [DefaultIndexTTL]
// when not positive.
func NewStore(client redis.UniversalClient, prefix string, indexTTL time.Duration) *Store {
	if prefix == "" {
		prefix = "authcore"
	}
	if indexTTL <= 0 {
		indexTTL = DefaultIndexTTL
	}
	return &Store{
		redis:    client,
		prefix:   prefix,
		indexTTL: indexTTL,
	}
}

func (s *Store) sessionPrefix() string { return s.prefix + ":session:" }
func (s *Store) userPrefix() string { return s.prefix + ":user_sessions:" }

func (s *Store) key(sessionID string) string { return s.sessionPrefix() + sessionID }
func (s *Store) userKey(userID string) string { return s.userPrefix() + userID }

// Put caches snap under its session id for ttl and indexes it by user.
//
//	Performance: 1 round trip (MULTI: HSET, PEXPIRE, SADD, EXPIRE).
func (s *Store) Put(ctx context.Context, snap *Snapshot, ttl time.Duration) error {
	if snap == nil || snap.SessionID == "" || snap.UserID == "" {
		return errors.New("session: snapshot requires session and user id")
	}
	if ttl <= 0 {
		return errors.New("session: ttl must be positive")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	indexTTL := s.indexTTL
	if ttl > indexTTL {
		indexTTL = ttl
	}

	key := s.key(snap.SessionID)
	userKey := s.userKey(snap.UserID)
	lastAccessed := snap.CreatedAt
	if lastAccessed.IsZero() {
		lastAccessed = time.Now()
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldData, data,
			fieldUserID, snap.UserID,
			fieldTTL, ttl.Milliseconds(),
			fieldLastAccessed, lastAccessed.UnixMilli(),
		)
		pipe.PExpire(ctx, key, ttl)
		pipe.SAdd(ctx, userKey, snap.SessionID)
		pipe.Expire(ctx, userKey, indexTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the cached snapshot and slides its TTL forward by the TTL it
// was stored with. The access time comes from the Redis clock.
//
//	Performance: 1 EVALSHA.
func (s *Store) Get(ctx context.Context, sessionID string) (*Snapshot, error) {
	res, err := getSessionLua.Run(ctx, s.redis, []string{s.key(sessionID)}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return nil, ErrCorruptSession
	}
	data, _ := vals[0].(string)
	nowRaw, _ := vals[1].(string)

	snap, err := decodeSnapshot(sessionID, data)
	if err != nil {
		return nil, err
	}
	if ms, err := strconv.ParseInt(nowRaw, 10, 64); err == nil {
		snap.LastAccessed = time.UnixMilli(ms)
	}
	return snap, nil
}

// Peek reads a snapshot without touching its TTL or access time.
func (s *Store) Peek(ctx context.Context, sessionID string) (*Snapshot, error) {
	vals, err := s.redis.HMGet(ctx, s.key(sessionID), fieldData, fieldLastAccessed).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	data, ok := vals[0].(string)
	if !ok {
		return nil, ErrSessionNotFound
	}

	snap, err := decodeSnapshot(sessionID, data)
	if err != nil {
		return nil, err
	}
	if raw, ok := vals[1].(string); ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			snap.LastAccessed = time.UnixMilli(ms)
		}
	}
	return snap, nil
}

// TTL returns the remaining cache lifetime of a session, or
// ErrSessionNotFound.
func (s *Store) TTL(ctx context.Context, sessionID string) (time.Duration, error) {
	ttl, err := s.redis.PTTL(ctx, s.key(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		return 0, ErrSessionNotFound
	}
	return ttl, nil
}

// Delete removes one session and its index entry. It reports whether a
// cache entry existed; deleting a missing session is not an error.
//
// Session and index keys live in different cluster slots, so the index
// SREM is a second command.
//
//	Performance: 1 EVALSHA + 1 SREM when the entry existed.
func (s *Store) Delete(ctx context.Context, sessionID string) (bool, error) {
	res, err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(sessionID)}).Slice()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 2 {
		return false, fmt.Errorf("%w: unexpected script reply", ErrRedisUnavailable)
	}
	existed, _ := res[0].(int64)
	if uid, _ := res[1].(string); uid != "" {
		if err := s.redis.SRem(ctx, s.userKey(uid), sessionID).Err(); err != nil {
			return existed == 1, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return existed == 1, nil
}

// RevokeAll deletes every cached session of userID together with the index
// and returns how many live entries were removed.
//
// Each DEL is its own command so a cluster client can route it to the
// session's slot.
//
//	Performance: 1 SMEMBERS + 1 pipelined round trip, O(sessions per user).
func (s *Store) RevokeAll(ctx context.Context, userID string) (int, error) {
	userKey := s.userKey(userID)
	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	pipe := s.redis.Pipeline()
	dels := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		dels[i] = pipe.Del(ctx, s.key(id))
	}
	pipe.Del(ctx, userKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	removed := 0
	for _, cmd := range dels {
		removed += int(cmd.Val())
	}
	return removed, nil
}

// ActiveSessionIDs returns indexed session ids whose cache entry still
// exists. Stale index members are skipped, not pruned.
func (s *Store) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Exists(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	live := make([]string, 0, len(ids))
	for i, cmd := range cmds {
		if cmd.Val() == 1 {
			live = append(live, ids[i])
		}
	}
	return live, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func decodeSnapshot(sessionID, data string) (*Snapshot, error) {
	if data == "" {
		return nil, ErrCorruptSession
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	snap.SessionID = sessionID
	return &snap, nil
}
