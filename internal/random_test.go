package internal

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewTokenEntropyAndShape(t *testing.T) {
	token, err := NewToken(nil, TokenBytes)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if !ValidTokenShape(token, TokenBytes) {
		t.Fatalf("unexpected token shape %q", token)
	}
	if strings.ContainsAny(token, "+/=") {
		t.Fatalf("expected base64url without padding, got %q", token)
	}

	other, err := NewToken(nil, TokenBytes)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if other == token {
		t.Fatal("expected distinct tokens")
	}
}

func TestNewTokenDeterministicReader(t *testing.T) {
	r := bytes.NewReader(bytes.Repeat([]byte{1}, 64))
	a, err := NewToken(r, TokenBytes)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	b, err := NewToken(r, TokenBytes)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if a != b {
		t.Fatal("expected identical tokens from identical input")
	}
	if _, err := NewToken(r, TokenBytes); err == nil {
		t.Fatal("expected exhausted reader to fail")
	}
}

func TestHashToken(t *testing.T) {
	h := HashToken("abc")
	if len(h) != 64 || h != HashToken("abc") || h == HashToken("abd") {
		t.Fatalf("unexpected hash %q", h)
	}
	if ValidTokenShape("short", TokenBytes) {
		t.Fatal("expected short token to be rejected")
	}
}
