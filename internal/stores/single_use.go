package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Purpose separates the token namespaces sharing one SingleUseStore.
type Purpose string

const (
	PurposeEmailVerification Purpose = "ev"
	PurposePasswordReset     Purpose = "pr"
)

var (
	ErrTokenNotFound = errors.New("single-use token not found")
	ErrTokenBackend  = errors.New("single-use token backend unavailable")
)

// Issuing a token replaces any outstanding token of the same purpose for the user.
const issueScript = `
local previous = redis.call("GET", KEYS[2])
if previous then
  redis.call("DEL", ARGV[3] .. previous)
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("SET", KEYS[2], ARGV[4], "PX", ARGV[2])
return 1
`

const consumeScript = `
local user = redis.call("GET", KEYS[1])
if not user then
  return false
end
redis.call("DEL", KEYS[1])
local idx = ARGV[1] .. user
if redis.call("GET", idx) == ARGV[2] then
  redis.call("DEL", idx)
end
return user
`

const peekScript = `
local user = redis.call("GET", KEYS[1])
if not user then
  return false
end
return {user, redis.call("PTTL", KEYS[1])}
`

var (
	issueLua   = redis.NewScript(issueScript)
	consumeLua = redis.NewScript(consumeScript)
	peekLua    = redis.NewScript(peekScript)
)

// SingleUseStore maps hashed one-time tokens (email verification, password reset) to users.
// Consume deletes the token in the same script that reads it, so a token can succeed once.
type SingleUseStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewSingleUseStore(redisClient redis.UniversalClient, prefix string) *SingleUseStore {
	if prefix == "" {
		prefix = "isu"
	}
	return &SingleUseStore{redis: redisClient, prefix: prefix}
}

func (s *SingleUseStore) tokenPrefix(purpose Purpose) string {
	return s.prefix + ":" + string(purpose) + ":t:"
}

func (s *SingleUseStore) userPrefix(purpose Purpose) string {
	return s.prefix + ":" + string(purpose) + ":u:"
}

// Issue stores tokenHash for userID with the given lifetime.
func (s *SingleUseStore) Issue(ctx context.Context, purpose Purpose, tokenHash, userID string, ttl time.Duration) error {
	if tokenHash == "" || userID == "" {
		return errors.New("single-use token record incomplete")
	}
	if ttl < time.Millisecond {
		return errors.New("single-use token ttl too short")
	}

	err := issueLua.Run(ctx, s.redis,
		[]string{s.tokenPrefix(purpose) + tokenHash, s.userPrefix(purpose) + userID},
		userID,
		ttl.Milliseconds(),
		s.tokenPrefix(purpose),
		tokenHash,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenBackend, err)
	}
	return nil
}

// Consume returns the owner of tokenHash and invalidates it.
func (s *SingleUseStore) Consume(ctx context.Context, purpose Purpose, tokenHash string) (string, error) {
	userID, err := consumeLua.Run(ctx, s.redis,
		[]string{s.tokenPrefix(purpose) + tokenHash},
		s.userPrefix(purpose),
		tokenHash,
	).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrTokenBackend, err)
	}
	return userID, nil
}

// Peek returns the owner of tokenHash and its remaining lifetime without invalidating it.
func (s *SingleUseStore) Peek(ctx context.Context, purpose Purpose, tokenHash string) (string, time.Duration, error) {
	vals, err := peekLua.Run(ctx, s.redis, []string{s.tokenPrefix(purpose) + tokenHash}).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", 0, ErrTokenNotFound
		}
		return "", 0, fmt.Errorf("%w: %v", ErrTokenBackend, err)
	}
	if len(vals) != 2 {
		return "", 0, fmt.Errorf("%w: unexpected peek reply %v", ErrTokenBackend, vals)
	}
	userID, _ := vals[0].(string)
	ms, _ := vals[1].(int64)
	if userID == "" || ms <= 0 {
		return "", 0, ErrTokenNotFound
	}
	return userID, time.Duration(ms) * time.Millisecond, nil
}
