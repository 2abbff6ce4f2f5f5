package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultAttemptMax      = 5
	defaultAttemptCooldown = 5 * time.Minute
)

// AttemptConfig bounds failed second-factor codes per user.
type AttemptConfig struct {
	Prefix      string
	MaxFailures int
	Cooldown    time.Duration
}

// AttemptLimiter counts failures only. Check refuses once MaxFailures failures landed inside
// the cooldown that started with the first of them.
type AttemptLimiter struct {
	failures window
}

// NewAttemptLimiter falls back to 5 failures per 5 minutes for zero fields.
func NewAttemptLimiter(client redis.UniversalClient, cfg AttemptConfig) *AttemptLimiter {
	max := cfg.MaxFailures
	if max <= 0 {
		max = defaultAttemptMax
	}
	cd := cfg.Cooldown
	if cd <= 0 {
		cd = defaultAttemptCooldown
	}
	return &AttemptLimiter{failures: window{redis: client, prefix: cfg.Prefix + ":att", max: max, period: cd}}
}

func (l *AttemptLimiter) Check(ctx context.Context, userID string) error {
	if l == nil || userID == "" {
		return nil
	}
	n, err := l.failures.count(ctx, userID)
	if err != nil {
		return err
	}
	if n >= int64(l.failures.max) {
		return ErrLimited
	}
	return nil
}

// RecordFailure counts one wrong code. Spending the budget is reported by the next Check.
func (l *AttemptLimiter) RecordFailure(ctx context.Context, userID string) error {
	if l == nil || userID == "" {
		return nil
	}
	if err := l.failures.hit(ctx, userID); err != nil && !errors.Is(err, ErrLimited) {
		return err
	}
	return nil
}

func (l *AttemptLimiter) Reset(ctx context.Context, userID string) error {
	if l == nil || userID == "" {
		return nil
	}
	return l.failures.clear(ctx, userID)
}
