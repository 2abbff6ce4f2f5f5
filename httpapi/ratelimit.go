package httpapi

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

const (
	limiterSweepEvery = 5 * time.Minute
	limiterIdleAfter  = 30 * time.Minute
)

// IPLimiter is a token bucket per client address. Buckets idle for longer than
// limiterIdleAfter are swept in the background until Close.
type IPLimiter struct {
	rps   rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	lastSeen map[string]time.Time

	stop chan struct{}
	once sync.Once
}

func NewIPLimiter(perSecond float64, burst int) *IPLimiter {
	l := &IPLimiter{
		rps:      rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
		buckets:  make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		stop:     make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

func (l *IPLimiter) Allow(ip string) bool {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[ip]
	if !ok {
		b = rate.NewLimiter(l.rps, l.burst)
		l.buckets[ip] = b
	}
	l.lastSeen[ip] = now
	l.mu.Unlock()

	return b.AllowN(now, 1)
}

// Handler is fiber middleware answering 429 once the caller's bucket is empty.
func (l *IPLimiter) Handler(c *fiber.Ctx) error {
	if !l.Allow(c.IP()) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many requests"})
	}
	return c.Next()
}

func (l *IPLimiter) sweepLoop() {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

func (l *IPLimiter) sweep() int {
	cutoff := l.now().Add(-limiterIdleAfter)

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for ip, seen := range l.lastSeen {
		if seen.Before(cutoff) {
			delete(l.buckets, ip)
			delete(l.lastSeen, ip)
			removed++
		}
	}
	return removed
}

func (l *IPLimiter) Close() {
	l.once.Do(func() { close(l.stop) })
}
