package totp

import (
	"bytes"
	"net/url"
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := DefaultConfig("Identity")
	cfg.Rand = bytes.NewReader(bytes.Repeat([]byte{0x42}, 64))
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestGenerateSetupBuildsProvisioningURI(t *testing.T) {
	m := newTestManager(t)

	setup, err := m.GenerateSetup("ada@example.com")
	if err != nil {
		t.Fatalf("GenerateSetup: %v", err)
	}
	if setup.Secret == "" {
		t.Fatal("expected secret")
	}

	u, err := url.Parse(setup.ProvisioningURI)
	if err != nil {
		t.Fatalf("parse uri: %v", err)
	}
	if u.Scheme != "otpauth" || u.Host != "totp" {
		t.Fatalf("unexpected uri %q", setup.ProvisioningURI)
	}
	if !strings.Contains(u.Path, "ada@example.com") {
		t.Fatalf("expected account label in path, got %q", u.Path)
	}
	q := u.Query()
	if q.Get("secret") != setup.Secret || q.Get("issuer") != "Identity" {
		t.Fatalf("unexpected query %v", q)
	}
	if strings.ReplaceAll(setup.DisplaySecret, " ", "") != setup.Secret {
		t.Fatalf("display secret %q does not match %q", setup.DisplaySecret, setup.Secret)
	}
}

func TestFormatSecretGroupsOfFour(t *testing.T) {
	if got := FormatSecret("jbswy3dpehpk3pxp"); got != "JBSW Y3DP EHPK 3PXP" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := FormatSecret("ABCDEF"); got != "ABCD EF" {
		t.Fatalf("unexpected format %q", got)
	}
}

func TestValidateAcceptsAdjacentStepOnly(t *testing.T) {
	m := newTestManager(t)
	setup, err := m.GenerateSetup("ada")
	if err != nil {
		t.Fatalf("GenerateSetup: %v", err)
	}

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"current", 0, true},
		{"previous", -30 * time.Second, true},
		{"next", 30 * time.Second, true},
		{"two back", -60 * time.Second, false},
		{"two ahead", 60 * time.Second, false},
	}

	for _, tc := range cases {
		code, err := m.GenerateCode(setup.Secret, now.Add(tc.offset))
		if err != nil {
			t.Fatalf("%s: GenerateCode: %v", tc.name, err)
		}
		ok, err := m.Validate(setup.Secret, code, now)
		if err != nil {
			t.Fatalf("%s: Validate: %v", tc.name, err)
		}
		if ok != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, ok)
		}
	}
}

func TestMatchReportsStep(t *testing.T) {
	m := newTestManager(t)
	setup, err := m.GenerateSetup("ada")
	if err != nil {
		t.Fatalf("GenerateSetup: %v", err)
	}

	now := time.Date(2026, 5, 1, 12, 0, 10, 0, time.UTC)
	current := now.Unix() / 30
	for _, offset := range []int64{-1, 0, 1} {
		code, err := m.GenerateCode(setup.Secret, now.Add(time.Duration(offset)*30*time.Second))
		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}
		step, ok, err := m.Match(setup.Secret, code, now)
		if err != nil || !ok {
			t.Fatalf("offset %d: expected match, got ok=%v err=%v", offset, ok, err)
		}
		if step != current+offset {
			t.Fatalf("offset %d: expected step %d, got %d", offset, current+offset, step)
		}
	}

	if _, ok, err := m.Match(setup.Secret, "12a456", now); ok || err != nil {
		t.Fatalf("expected malformed code to miss, got ok=%v err=%v", ok, err)
	}
	if _, _, err := m.Match("", "123456", now); err == nil {
		t.Fatal("expected empty secret to fail")
	}
}

func TestValidateRejectsMalformedCodes(t *testing.T) {
	m := newTestManager(t)
	setup, err := m.GenerateSetup("ada")
	if err != nil {
		t.Fatalf("GenerateSetup: %v", err)
	}

	for _, code := range []string{"", "12345", "1234567", "abcdef"} {
		ok, err := m.Validate(setup.Secret, code, time.Now())
		if err != nil || ok {
			t.Fatalf("code %q: expected invalid without error, got ok=%v err=%v", code, ok, err)
		}
	}
}

func TestValidateAcceptsDisplayFormattedSecret(t *testing.T) {
	m := newTestManager(t)
	setup, err := m.GenerateSetup("ada")
	if err != nil {
		t.Fatalf("GenerateSetup: %v", err)
	}
	now := time.Now()
	code, err := m.GenerateCode(setup.Secret, now)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	ok, err := m.Validate(setup.DisplaySecret, code, now)
	if err != nil || !ok {
		t.Fatalf("expected display secret to validate: ok=%v err=%v", ok, err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{}); err == nil {
		t.Fatal("expected missing issuer to fail")
	}
	cfg := DefaultConfig("x")
	cfg.Skew = 5
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected large skew to fail")
	}
}
