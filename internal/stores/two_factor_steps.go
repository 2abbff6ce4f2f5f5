package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// advanceStepScript stores ARGV[1] only when it is above the step already recorded.
//
// KEYS[1] used-step key
// ARGV[1] step
// ARGV[2] ttl in milliseconds
// Returns 1 when the step was accepted, 0 when it was already used.
var advanceStepScript = redis.NewScript(`
local last = redis.call("GET", KEYS[1])
if last and tonumber(last) >= tonumber(ARGV[1]) then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`)

// TwoFactorStepStore remembers the last TOTP time step accepted per user. Records only need
// to outlive the validation window, after which older steps fail validation anyway.
type TwoFactorStepStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewTwoFactorStepStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *TwoFactorStepStore {
	if prefix == "" {
		prefix = "i2fa"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TwoFactorStepStore{redis: redisClient, prefix: prefix + ":step", ttl: ttl}
}

func (s *TwoFactorStepStore) key(userID string) string {
	return s.prefix + ":" + userID
}

// Advance records step for userID. It reports false when step is not newer than the last
// accepted one.
func (s *TwoFactorStepStore) Advance(ctx context.Context, userID string, step int64) (bool, error) {
	n, err := advanceStepScript.Run(ctx, s.redis, []string{s.key(userID)}, step, s.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return n == 1, nil
}
