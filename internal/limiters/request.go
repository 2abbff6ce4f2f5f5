package limiters

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RequestConfig bounds one kind of request per identifier and per client IP. A zero maximum
// disables that half.
type RequestConfig struct {
	Prefix           string
	MaxPerIdentifier int
	MaxPerIP         int
	Window           time.Duration
}

type RequestLimiter struct {
	byIdentifier window
	byIP         window
}

func NewRequestLimiter(client redis.UniversalClient, cfg RequestConfig) *RequestLimiter {
	return &RequestLimiter{
		byIdentifier: window{redis: client, prefix: cfg.Prefix + ":id", max: cfg.MaxPerIdentifier, period: cfg.Window},
		byIP:         window{redis: client, prefix: cfg.Prefix + ":ip", max: cfg.MaxPerIP, period: cfg.Window},
	}
}

// Check counts the request against both budgets. The IP budget is charged even when the
// identifier budget is already spent.
func (l *RequestLimiter) Check(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}
	idErr := l.byIdentifier.hit(ctx, strings.ToLower(strings.TrimSpace(identifier)))
	ipErr := l.byIP.hit(ctx, ip)
	if idErr != nil {
		return idErr
	}
	return ipErr
}
