package limiters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T, cfg RequestConfig) (*RequestLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { _ = client.Close() })
	return NewRequestLimiter(client, cfg), mr
}

func TestRequestLimiterPerIdentifier(t *testing.T) {
	l, mr := newLimiter(t, RequestConfig{Prefix: "t", MaxPerIdentifier: 2, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Check(ctx, "Alice@Example.com", "203.0.113.1"); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if err := l.Check(ctx, " alice@example.com", "198.51.100.1"); !errors.Is(err, ErrLimited) {
		t.Fatalf("expected ErrLimited for normalized identifier, got %v", err)
	}
	if err := l.Check(ctx, "bob@example.com", "203.0.113.1"); err != nil {
		t.Fatalf("other identifier limited: %v", err)
	}

	if ttl := mr.TTL("t:id:alice@example.com"); ttl != time.Minute {
		t.Fatalf("expected window ttl 1m, got %v", ttl)
	}
	mr.FastForward(time.Minute + time.Second)
	if err := l.Check(ctx, "alice@example.com", ""); err != nil {
		t.Fatalf("window did not reset: %v", err)
	}
}

func TestRequestLimiterPerIP(t *testing.T) {
	l, _ := newLimiter(t, RequestConfig{Prefix: "t", MaxPerIP: 1, Window: time.Minute})
	ctx := context.Background()

	if err := l.Check(ctx, "a", "203.0.113.1"); err != nil {
		t.Fatal(err)
	}
	if err := l.Check(ctx, "b", "203.0.113.1"); !errors.Is(err, ErrLimited) {
		t.Fatalf("expected ErrLimited, got %v", err)
	}
	if err := l.Check(ctx, "c", ""); err != nil {
		t.Fatalf("empty ip should not be counted: %v", err)
	}
}

func TestRequestLimiterUnavailable(t *testing.T) {
	l, mr := newLimiter(t, RequestConfig{Prefix: "t", MaxPerIdentifier: 1, Window: time.Minute})
	mr.Close()

	if err := l.Check(context.Background(), "a", ""); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestNilRequestLimiter(t *testing.T) {
	var l *RequestLimiter
	if err := l.Check(context.Background(), "a", "b"); err != nil {
		t.Fatalf("nil limiter returned %v", err)
	}
}

func TestAttemptLimiterCountsFailuresOnly(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { _ = client.Close() })
	l := NewAttemptLimiter(client, AttemptConfig{Prefix: "t", MaxFailures: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Check(ctx, "u1"); err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if err := l.RecordFailure(ctx, "u1"); err != nil {
			t.Fatalf("failure %d: %v", i, err)
		}
	}
	if err := l.Check(ctx, "u1"); !errors.Is(err, ErrLimited) {
		t.Fatalf("expected ErrLimited after three failures, got %v", err)
	}
	if err := l.Check(ctx, "u2"); err != nil {
		t.Fatalf("budget is per user: %v", err)
	}
	if ttl := mr.TTL("t:att:u1"); ttl != time.Minute {
		t.Fatalf("expected cooldown ttl 1m, got %v", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.Check(ctx, "u1"); err != nil {
		t.Fatalf("cooldown did not reset: %v", err)
	}

	_ = l.RecordFailure(ctx, "u1")
	if err := l.Reset(ctx, "u1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if mr.Exists("t:att:u1") {
		t.Fatal("expected reset to clear the counter")
	}
}

func TestAttemptLimiterNilAndUnavailable(t *testing.T) {
	var l *AttemptLimiter
	if err := l.Check(context.Background(), "u1"); err != nil {
		t.Fatalf("nil limiter must allow: %v", err)
	}

	mr := miniredis.RunT(t)
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	t.Cleanup(func() { _ = client.Close() })
	live := NewAttemptLimiter(client, AttemptConfig{Prefix: "t"})
	mr.Close()
	if err := live.Check(context.Background(), "u1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
