package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists ledger records.
type Store interface {
	Create(ctx context.Context, token *Token) error
	Get(ctx context.Context, id string) (*Token, error)
	FindByValueHash(ctx context.Context, valueHash string) (*Token, error)
	// Rotate atomically marks parentID rotated and inserts next. It fails with
	// ErrRotationConflict when the parent is no longer unrevoked.
	Rotate(ctx context.Context, parentID string, next *Token, at time.Time, ip string) error
	// Revoke marks id revoked if it is still active and reports whether it changed, along
	// with the id of its replacement if any.
	Revoke(ctx context.Context, id string, at time.Time, ip, reason string) (bool, string, error)
	ListByUser(ctx context.Context, userID string) ([]*Token, error)
}

const (
	rotateStatusNotFound  int64 = 0
	rotateStatusExpired   int64 = 1
	rotateStatusConflict  int64 = 2
	rotateStatusRotated   int64 = 3
	rotateStatusMismatch  int64 = 4
	rotateStatusCollision int64 = 5
)

const (
	revokeStatusNotFound int64 = 0
	revokeStatusInactive int64 = 1
	revokeStatusRevoked  int64 = 2
)

const rotateScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
local f = redis.call("HMGET", KEYS[1], "user_id", "expires_at", "revoked_at")
if f[1] ~= ARGV[4] then
  return 4
end
if f[3] and f[3] ~= "" then
  return 2
end
if tonumber(f[2]) <= tonumber(ARGV[1]) then
  return 1
end
if redis.call("EXISTS", KEYS[2]) == 1 or redis.call("EXISTS", KEYS[3]) == 1 then
  return 5
end
redis.call("HSET", KEYS[1], "revoked_at", ARGV[1], "revoked_ip", ARGV[2], "revoked_reason", ARGV[8], "replaced_by", ARGV[3])
redis.call("HSET", KEYS[2],
  "id", ARGV[3],
  "user_id", ARGV[4],
  "value_hash", ARGV[5],
  "created_at", ARGV[6],
  "expires_at", ARGV[7],
  "created_ip", ARGV[2],
  "revoked_at", "",
  "revoked_ip", "",
  "revoked_reason", "",
  "replaced_by", "")
redis.call("SET", KEYS[3], ARGV[3])
redis.call("SADD", KEYS[4], ARGV[3])
return 3
`

const revokeScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return {0, ""}
end
local f = redis.call("HMGET", KEYS[1], "expires_at", "revoked_at", "replaced_by")
local replaced = f[3] or ""
if f[2] and f[2] ~= "" then
  return {1, replaced}
end
if tonumber(f[1]) <= tonumber(ARGV[1]) then
  return {1, replaced}
end
redis.call("HSET", KEYS[1], "revoked_at", ARGV[1], "revoked_ip", ARGV[2], "revoked_reason", ARGV[3])
return {2, replaced}
`

var (
	rotateLua = redis.NewScript(rotateScript)
	revokeLua = redis.NewScript(revokeScript)
)

// RedisStore is the Redis-backed Store.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore returns a store using prefix for every key ("irt" when empty).
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "irt"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) tokenKey(id string) string {
	return s.prefix + ":t:" + id
}

func (s *RedisStore) valueKey(valueHash string) string {
	return s.prefix + ":v:" + valueHash
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

func (s *RedisStore) Create(ctx context.Context, token *Token) error {
	if token == nil || token.ID == "" || token.UserID == "" || token.ValueHash == "" {
		return errors.New("refresh token record incomplete")
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.tokenKey(token.ID), encodeToken(token))
		pipe.Set(ctx, s.valueKey(token.ValueHash), token.ID, 0)
		pipe.SAdd(ctx, s.userKey(token.UserID), token.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Token, error) {
	fields, err := s.redis.HGetAll(ctx, s.tokenKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return decodeToken(fields)
}

func (s *RedisStore) FindByValueHash(ctx context.Context, valueHash string) (*Token, error) {
	id, err := s.redis.Get(ctx, s.valueKey(valueHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return s.Get(ctx, id)
}

func (s *RedisStore) Rotate(ctx context.Context, parentID string, next *Token, at time.Time, ip string) error {
	if next == nil || next.ID == "" || next.ValueHash == "" {
		return errors.New("refresh token record incomplete")
	}

	status, err := rotateLua.Run(ctx, s.redis,
		[]string{
			s.tokenKey(parentID),
			s.tokenKey(next.ID),
			s.valueKey(next.ValueHash),
			s.userKey(next.UserID),
		},
		at.UnixMilli(),
		ip,
		next.ID,
		next.UserID,
		next.ValueHash,
		next.CreatedAt.UnixMilli(),
		next.ExpiresAt.UnixMilli(),
		ReasonRotated,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch status {
	case rotateStatusRotated:
		return nil
	case rotateStatusNotFound:
		return ErrNotFound
	case rotateStatusExpired:
		return ErrExpired
	case rotateStatusConflict:
		return ErrRotationConflict
	case rotateStatusMismatch:
		return ErrCorruptRecord
	case rotateStatusCollision:
		return errors.New("refresh token id collision")
	default:
		return fmt.Errorf("%w: unexpected rotate status %d", ErrStoreUnavailable, status)
	}
}

func (s *RedisStore) Revoke(ctx context.Context, id string, at time.Time, ip, reason string) (bool, string, error) {
	res, err := revokeLua.Run(ctx, s.redis, []string{s.tokenKey(id)}, at.UnixMilli(), ip, reason).Slice()
	if err != nil {
		return false, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return false, "", fmt.Errorf("%w: unexpected revoke reply", ErrStoreUnavailable)
	}

	status, _ := res[0].(int64)
	replacedBy, _ := res[1].(string)
	switch status {
	case revokeStatusNotFound:
		return false, "", ErrNotFound
	case revokeStatusInactive:
		return false, replacedBy, nil
	case revokeStatusRevoked:
		return true, replacedBy, nil
	default:
		return false, "", fmt.Errorf("%w: unexpected revoke status %d", ErrStoreUnavailable, status)
	}
}

func (s *RedisStore) ListByUser(ctx context.Context, userID string) ([]*Token, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.tokenKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	tokens := make([]*Token, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		tok, err := decodeToken(fields)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

func encodeToken(t *Token) map[string]interface{} {
	revokedAt := ""
	if t.RevokedAt != nil {
		revokedAt = strconv.FormatInt(t.RevokedAt.UnixMilli(), 10)
	}
	return map[string]interface{}{
		"id":             t.ID,
		"user_id":        t.UserID,
		"value_hash":     t.ValueHash,
		"created_at":     strconv.FormatInt(t.CreatedAt.UnixMilli(), 10),
		"expires_at":     strconv.FormatInt(t.ExpiresAt.UnixMilli(), 10),
		"created_ip":     t.CreatedByIP,
		"revoked_at":     revokedAt,
		"revoked_ip":     t.RevokedByIP,
		"revoked_reason": t.RevokedReason,
		"replaced_by":    t.ReplacedBy,
	}
}

func decodeToken(fields map[string]string) (*Token, error) {
	createdAt, err := parseMillis(fields["created_at"])
	if err != nil {
		return nil, ErrCorruptRecord
	}
	expiresAt, err := parseMillis(fields["expires_at"])
	if err != nil {
		return nil, ErrCorruptRecord
	}
	if fields["id"] == "" || fields["user_id"] == "" {
		return nil, ErrCorruptRecord
	}

	t := &Token{
		ID:            fields["id"],
		UserID:        fields["user_id"],
		ValueHash:     fields["value_hash"],
		CreatedAt:     createdAt,
		ExpiresAt:     expiresAt,
		CreatedByIP:   fields["created_ip"],
		RevokedByIP:   fields["revoked_ip"],
		RevokedReason: fields["revoked_reason"],
		ReplacedBy:    fields["replaced_by"],
	}
	if raw := fields["revoked_at"]; raw != "" {
		revokedAt, err := parseMillis(raw)
		if err != nil {
			return nil, ErrCorruptRecord
		}
		t.RevokedAt = &revokedAt
	}
	return t, nil
}

func parseMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
