package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
)

const (
	// TokenBytes is the entropy of every opaque token handed to clients (256 bits).
	TokenBytes = 32
	// ChallengeBytes is the entropy of short-lived challenge identifiers.
	ChallengeBytes = 24
)

var errShortRandom = errors.New("random source returned too few bytes")

// NewToken reads size bytes from r (crypto/rand when nil) and returns them base64url encoded
// without padding.
func NewToken(r io.Reader, size int) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	if size <= 0 {
		size = TokenBytes
	}
	raw := make([]byte, size)
	n, err := io.ReadFull(r, raw)
	if err != nil {
		return "", err
	}
	if n != size {
		return "", errShortRandom
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashToken returns the hex SHA-256 of an opaque token. Only this digest is ever persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidTokenShape reports whether token could have come from NewToken with the given size.
func ValidTokenShape(token string, size int) bool {
	if len(token) != base64.RawURLEncoding.EncodedLen(size) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil
}
