package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Hasher is the single entry point used by the identity engine. New hashes are always argon2id;
// bcrypt hashes imported from older deployments are still verified and always reported as
// needing an upgrade.
type Hasher struct {
	argon *Argon2
}

// NewHasher builds a Hasher around an argon2id configuration.
func NewHasher(cfg Config) (*Hasher, error) {
	argon, err := NewArgon2(cfg)
	if err != nil {
		return nil, err
	}
	return &Hasher{argon: argon}, nil
}

// Hash produces a new argon2id hash.
func (h *Hasher) Hash(password string) (string, error) {
	return h.argon.Hash(password)
}

// Verify checks password against either an argon2id or a bcrypt hash.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, argon2Prefix):
		return h.argon.Verify(password, encodedHash)
	case isBcrypt(encodedHash):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	default:
		return false, ErrUnsupportedHash
	}
}

// NeedsUpgrade reports whether encodedHash should be replaced after the next successful login.
func (h *Hasher) NeedsUpgrade(encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		return true, nil
	}
	return h.argon.NeedsUpgrade(encodedHash)
}

// MinLength is the policy minimum enforced by Hash.
func (h *Hasher) MinLength() int {
	return h.argon.minLength
}

func isBcrypt(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}
