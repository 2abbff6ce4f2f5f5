package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrLimited     = errors.New("rate limited")
	ErrUnavailable = errors.New("limiter redis unavailable")
)

// window counts hits per subject within a fixed period.
type window struct {
	redis  redis.UniversalClient
	prefix string
	max    int
	period time.Duration
}

func (w window) key(subject string) string {
	return w.prefix + ":" + subject
}

func (w window) hit(ctx context.Context, subject string) error {
	if w.max <= 0 || subject == "" {
		return nil
	}
	key := w.key(subject)
	count, err := w.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := w.redis.Expire(ctx, key, w.period).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if count > int64(w.max) {
		return ErrLimited
	}
	return nil
}

// count returns the hits recorded for subject in the current window.
func (w window) count(ctx context.Context, subject string) (int64, error) {
	n, err := w.redis.Get(ctx, w.key(subject)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

func (w window) clear(ctx context.Context, subject string) error {
	if err := w.redis.Del(ctx, w.key(subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
