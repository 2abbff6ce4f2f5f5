package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newTestManager(t *testing.T, clock *testClock) (*Manager, ed25519.PrivateKey) {
	t.Helper()
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "identity",
		Audience:      "api",
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, priv
}

func TestNewManagerRequiresIssuerAndAudience(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	if _, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: key, Audience: "api"}); err == nil {
		t.Fatal("expected missing issuer to be rejected")
	}
	if _, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: key, Issuer: "identity"}); err == nil {
		t.Fatal("expected missing audience to be rejected")
	}
	if _, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short"), Issuer: "i", Audience: "a"}); err == nil {
		t.Fatal("expected short hmac key to be rejected")
	}
}

func TestCreateAccessCarriesSubjectRolesAndJTI(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m, _ := newTestManager(t, clock)

	token, claims, err := m.CreateAccess(Subject{UserID: "u-1", DisplayName: "Ada", Roles: []string{"admin", "user"}})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be set")
	}
	if !claims.ExpiresAt.Time.Equal(clock.now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", claims.ExpiresAt.Time)
	}

	parsed, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if parsed.UID != "u-1" || parsed.Subject != "u-1" || parsed.Name != "Ada" {
		t.Fatalf("unexpected claims %+v", parsed)
	}
	if len(parsed.Roles) != 2 || parsed.Roles[0] != "admin" {
		t.Fatalf("unexpected roles %v", parsed.Roles)
	}

	_, other, err := m.CreateAccess(Subject{UserID: "u-1"})
	if err != nil {
		t.Fatalf("create second access: %v", err)
	}
	if other.ID == claims.ID {
		t.Fatal("expected unique jti per token")
	}
}

func TestParseAccessExpiryIsExact(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m, _ := newTestManager(t, clock)

	token, _, err := m.CreateAccess(Subject{UserID: "u-1"})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	clock.now = clock.now.Add(time.Hour - time.Second)
	if _, err := m.ParseAccess(token); err != nil {
		t.Fatalf("expected token valid one second before expiry: %v", err)
	}

	clock.now = clock.now.Add(time.Second)
	if _, err := m.ParseAccess(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at exp, got %v", err)
	}
}

func TestParseAccessRejectsWrongAlgorithm(t *testing.T) {
	clock := &testClock{now: time.Now()}
	m, _ := newTestManager(t, clock)

	claims := AccessClaims{UID: "u", RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u",
		ID:        "j",
		Issuer:    "identity",
		Audience:  gjwt.ClaimStrings{"api"},
		IssuedAt:  gjwt.NewNumericDate(clock.now),
		ExpiresAt: gjwt.NewNumericDate(clock.now.Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.ParseAccess(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseAccessEnforcesIssuerAndAudience(t *testing.T) {
	clock := &testClock{now: time.Now()}
	m, priv := newTestManager(t, clock)

	sign := func(issuer, audience string) string {
		claims := AccessClaims{UID: "u", RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u",
			ID:        "j",
			Issuer:    issuer,
			Audience:  gjwt.ClaimStrings{audience},
			IssuedAt:  gjwt.NewNumericDate(clock.now),
			ExpiresAt: gjwt.NewNumericDate(clock.now.Add(time.Minute)),
		}}
		token, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return token
	}

	if _, err := m.ParseAccess(sign("identity", "api")); err != nil {
		t.Fatalf("expected valid token: %v", err)
	}
	if _, err := m.ParseAccess(sign("other", "api")); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected wrong issuer to fail, got %v", err)
	}
	if _, err := m.ParseAccess(sign("identity", "other-api")); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected wrong audience to fail, got %v", err)
	}
}

func TestParseAccessRejectsGarbage(t *testing.T) {
	m, _ := newTestManager(t, &testClock{now: time.Now()})
	for _, in := range []string{"", "abc", "a.b.c", "eyJhbGciOiJub25lIn0.e30."} {
		if _, err := m.ParseAccess(in); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("input %q: expected ErrTokenInvalid, got %v", in, err)
		}
	}
}

func TestHS256RoundTrip(t *testing.T) {
	clock := &testClock{now: time.Now()}
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "identity",
		Audience:      "api",
		KeyID:         "k1",
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, _, err := m.CreateAccess(Subject{UserID: "u-2"})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(token); err != nil {
		t.Fatalf("parse access: %v", err)
	}
}

func TestVerifyKeysRotation(t *testing.T) {
	clock := &testClock{now: time.Now()}
	oldPub, oldPriv := newEdKeys(t)
	newPub, newPriv := newEdKeys(t)
	verify := map[string][]byte{"old": oldPub, "new": newPub}

	issuer := func(kid string, priv ed25519.PrivateKey) *Manager {
		m, err := NewManager(Config{
			AccessTTL:     time.Minute,
			SigningMethod: MethodEd25519,
			PrivateKey:    priv,
			Issuer:        "identity",
			Audience:      "api",
			KeyID:         kid,
			VerifyKeys:    verify,
			Now:           clock.Now,
		})
		if err != nil {
			t.Fatalf("new manager %s: %v", kid, err)
		}
		return m
	}
	oldM, newM := issuer("old", oldPriv), issuer("new", newPriv)

	token, _, err := oldM.CreateAccess(Subject{UserID: "u-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := newM.ParseAccess(token); err != nil {
		t.Fatalf("token signed with the previous key should verify: %v", err)
	}

	delete(verify, "old")
	trimmed := issuer("new", newPriv)
	if _, err := trimmed.ParseAccess(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("retired kid should be rejected, got %v", err)
	}

	if _, err := NewManager(Config{
		AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: newPriv,
		Issuer: "identity", Audience: "api", KeyID: "missing", VerifyKeys: verify,
	}); err == nil {
		t.Fatal("expected KeyID outside VerifyKeys to be rejected")
	}
}
