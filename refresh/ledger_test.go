package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/events"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type ledgerHarness struct {
	ledger  *Ledger
	store   *RedisStore
	events  *events.MemoryStore
	clock   *testClock
	blocked map[string]bool
	mu      sync.Mutex
}

func newLedgerHarness(t *testing.T) *ledgerHarness {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	h := &ledgerHarness{
		store:   NewRedisStore(rdb, "test"),
		events:  events.NewMemoryStore(),
		clock:   &testClock{now: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)},
		blocked: map[string]bool{},
	}
	recorder, err := events.NewRecorder(events.RecorderConfig{Store: h.events, Now: h.clock.Now})
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	subjects := SubjectValidatorFunc(func(_ context.Context, userID string) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.blocked[userID] {
			return ErrSubjectInvalid
		}
		return nil
	})
	h.ledger, err = NewLedger(h.store, subjects, recorder, Config{Now: h.clock.Now})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	return h
}

func (h *ledgerHarness) eventCount(t *testing.T, typ events.EventType) int {
	t.Helper()
	_, total, err := h.events.Query(context.Background(), events.Filter{Types: []events.EventType{typ}}, 0, 0)
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	return total
}

func countActive(chain []*Token, now time.Time) int {
	n := 0
	for _, tok := range chain {
		if tok.IsActive(now) {
			n++
		}
	}
	return n
}

func TestCreateIssuesHighEntropyToken(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()

	tok, err := h.ledger.Create(ctx, "u1", "10.0.0.1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(tok.Value) != 43 {
		t.Fatalf("expected 32-byte base64url value, got %q", tok.Value)
	}
	if !tok.ExpiresAt.Equal(h.clock.Now().Add(7 * 24 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", tok.ExpiresAt)
	}

	stored, err := h.ledger.Lookup(ctx, tok.Value)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if stored.Value != "" {
		t.Fatal("expected stored record not to carry the token value")
	}
	if stored.UserID != "u1" || stored.CreatedByIP != "10.0.0.1" || stored.State(h.clock.Now()) != StateActive {
		t.Fatalf("unexpected stored token %+v", stored)
	}
}

func TestRefreshRotatesAndLinksChain(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()

	first, err := h.ledger.Create(ctx, "u1", "1.1.1.1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rot, err := h.ledger.Refresh(ctx, first.Value, "2.2.2.2", "ua")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rot.Next.Value == "" || rot.Next.Value == first.Value {
		t.Fatal("expected a fresh token value")
	}

	parent, err := h.store.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if parent.State(h.clock.Now()) != StateRotated || parent.ReplacedBy != rot.Next.ID {
		t.Fatalf("expected parent rotated to child, got %+v", parent)
	}
	if parent.RevokedByIP != "2.2.2.2" || parent.RevokedReason != ReasonRotated {
		t.Fatalf("unexpected revocation metadata %+v", parent)
	}

	chain, err := h.ledger.Chain(ctx, first.Value)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if len(chain) != 2 || countActive(chain, h.clock.Now()) != 1 {
		t.Fatalf("expected two tokens with one active, got %d tokens", len(chain))
	}
}

func TestReplayRevokesEveryDescendant(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()

	first, err := h.ledger.Create(ctx, "u1", "ip")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := h.ledger.Refresh(ctx, first.Value, "ip", "ua")
	if err != nil {
		t.Fatalf("Refresh 1: %v", err)
	}
	third, err := h.ledger.Refresh(ctx, second.Next.Value, "ip", "ua")
	if err != nil {
		t.Fatalf("Refresh 2: %v", err)
	}

	if _, err := h.ledger.Refresh(ctx, first.Value, "6.6.6.6", "thief"); !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("expected ErrReplayDetected, got %v", err)
	}

	chain, err := h.ledger.Chain(ctx, first.Value)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("expected chain of three, got %d", len(chain))
	}
	if n := countActive(chain, h.clock.Now()); n != 0 {
		t.Fatalf("expected whole chain revoked, %d active", n)
	}
	if last := chain[2]; last.RevokedReason != ReasonReplayDetected || last.State(h.clock.Now()) != StateRevoked {
		t.Fatalf("unexpected tail %+v", last)
	}

	if _, err := h.ledger.Refresh(ctx, third.Next.Value, "ip", "ua"); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected revoked tail to fail with ErrRevoked, got %v", err)
	}
	if h.eventCount(t, events.EventSuspiciousActivity) != 1 {
		t.Fatalf("the holder of a killed chain must not raise a second reuse event")
	}

	if _, err := h.ledger.Refresh(ctx, first.Value, "6.6.6.6", "thief"); !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("expected repeated reuse of a rotated token to be a replay, got %v", err)
	}
	if h.eventCount(t, events.EventSuspiciousActivity) != 2 {
		t.Fatalf("expected a reuse event for the second presentation of the rotated token")
	}
}

func TestRefreshExpiredAndUnknown(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()

	tok, err := h.ledger.Create(ctx, "u1", "ip")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := h.ledger.Refresh(ctx, "not-a-token", "ip", "ua"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for garbage, got %v", err)
	}
	other, _ := h.ledger.Create(ctx, "u2", "ip")
	if other == nil {
		t.Fatal("expected second token")
	}

	h.clock.Advance(7 * 24 * time.Hour)
	if _, err := h.ledger.Refresh(ctx, tok.Value, "ip", "ua"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	stored, err := h.ledger.Lookup(ctx, tok.Value)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if stored.RevokedAt != nil {
		t.Fatal("expected expired token to be left untouched")
	}
	if h.eventCount(t, events.EventSuspiciousActivity) != 0 {
		t.Fatal("expected no events for an expired token")
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()

	tok, err := h.ledger.Create(ctx, "u1", "ip")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if ok, err := h.ledger.Revoke(ctx, tok.Value, "someone-else", "ip", "ua", ""); err != nil || ok {
		t.Fatalf("expected foreign owner to be refused: ok=%v err=%v", ok, err)
	}
	if ok, err := h.ledger.Revoke(ctx, tok.Value, "u1", "9.9.9.9", "ua", ""); err != nil || !ok {
		t.Fatalf("expected first revoke to succeed: ok=%v err=%v", ok, err)
	}
	if ok, err := h.ledger.Revoke(ctx, tok.Value, "u1", "9.9.9.9", "ua", ""); err != nil || ok {
		t.Fatalf("expected second revoke to be a no-op: ok=%v err=%v", ok, err)
	}
	if ok, err := h.ledger.Revoke(ctx, "missing", "", "ip", "ua", ""); err != nil || ok {
		t.Fatalf("expected unknown token revoke to be a no-op: ok=%v err=%v", ok, err)
	}

	stored, _ := h.ledger.Lookup(ctx, tok.Value)
	if stored.RevokedByIP != "9.9.9.9" || stored.RevokedReason != ReasonLogout {
		t.Fatalf("unexpected revocation metadata %+v", stored)
	}
	if h.eventCount(t, events.EventTokenRevoked) != 1 {
		t.Fatal("expected exactly one TokenRevoked event")
	}
}

func TestRefreshRejectsInvalidSubject(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()

	tok, err := h.ledger.Create(ctx, "u1", "ip")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	h.mu.Lock()
	h.blocked["u1"] = true
	h.mu.Unlock()

	if _, err := h.ledger.Refresh(ctx, tok.Value, "ip", "ua"); !errors.Is(err, ErrSubjectInvalid) {
		t.Fatalf("expected ErrSubjectInvalid, got %v", err)
	}
	stored, _ := h.ledger.Lookup(ctx, tok.Value)
	if stored.State(h.clock.Now()) != StateRevoked || stored.RevokedReason != ReasonSubjectInvalid {
		t.Fatalf("expected token revoked for invalid subject, got %+v", stored)
	}
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()

	tok, err := h.ledger.Create(ctx, "u1", "ip")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.ledger.Refresh(ctx, tok.Value, "ip", "ua")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrReplayDetected):
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one successful rotation, got %d", success)
	}

	chain, err := h.ledger.Chain(ctx, tok.Value)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("expected a single child, chain length %d", len(chain))
	}
	if countActive(chain, h.clock.Now()) != 0 {
		t.Fatal("expected the losing refreshes to revoke the winner's child")
	}
}

func TestRevokeAllForUser(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := h.ledger.Create(ctx, "u1", "ip"); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	keep, err := h.ledger.Create(ctx, "u2", "ip")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	n, err := h.ledger.RevokeAllForUser(ctx, "u1", "ip", "")
	if err != nil || n != 3 {
		t.Fatalf("expected three revocations: n=%d err=%v", n, err)
	}
	if n, _ := h.ledger.RevokeAllForUser(ctx, "u1", "ip", ""); n != 0 {
		t.Fatalf("expected second pass to revoke nothing, got %d", n)
	}
	stored, _ := h.ledger.Lookup(ctx, keep.Value)
	if !stored.IsActive(h.clock.Now()) {
		t.Fatal("expected other users' tokens to stay active")
	}
}

func TestChainNeverHasTwoActiveTokens(t *testing.T) {
	h := newLedgerHarness(t)
	ctx := context.Background()

	root, err := h.ledger.Create(ctx, "u1", "ip")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	current := root.Value
	for i := 0; i < 12; i++ {
		rot, err := h.ledger.Refresh(ctx, current, "ip", "ua")
		if err != nil {
			t.Fatalf("Refresh %d: %v", i, err)
		}
		current = rot.Next.Value
		h.clock.Advance(time.Minute)

		chain, err := h.ledger.Chain(ctx, root.Value)
		if err != nil {
			t.Fatalf("Chain: %v", err)
		}
		if n := countActive(chain, h.clock.Now()); n != 1 {
			t.Fatalf("step %d: expected exactly one active token, got %d", i, n)
		}
	}
}
