package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Prefix = "$argon2id$"
	minSalt      = 16
	minKey       = 16
)

// floor is the weakest cost accepted in configuration and in stored hashes.
var floor = cost{memory: 8 * 1024, time: 1, threads: 1}

var (
	// ErrPasswordTooShort is returned by Hash when the password is below the configured minimum.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrUnsupportedHash is returned when a stored hash is neither argon2id PHC nor bcrypt.
	ErrUnsupportedHash = errors.New("unsupported password hash format")
	// ErrMalformedHash wraps every decoding problem in an argon2id string.
	ErrMalformedHash = errors.New("malformed argon2id hash")
)

// Config holds the argon2id cost parameters applied to new hashes.
type Config struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MinLength is the minimum accepted password length in bytes. Zero means 8.
	MinLength int
	// Rand overrides the salt source. Defaults to crypto/rand.
	Rand io.Reader
}

// DefaultConfig returns the interactive-login parameters used in production.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
		MinLength:   8,
	}
}

type cost struct {
	memory  uint32
	time    uint32
	threads uint8
}

func (c cost) below(o cost) bool {
	return c.memory < o.memory || c.time < o.time || c.threads < o.threads
}

func (c cost) String() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", c.memory, c.time, c.threads)
}

// digest is a decoded argon2id PHC string.
type digest struct {
	cost cost
	salt []byte
	key  []byte
}

func (d digest) encode() string {
	return fmt.Sprintf("%sv=%d$%s$%s$%s", argon2Prefix, argon2.Version, d.cost,
		base64.RawStdEncoding.EncodeToString(d.salt),
		base64.RawStdEncoding.EncodeToString(d.key))
}

func malformed(what string) error {
	return fmt.Errorf("%w: %s", ErrMalformedHash, what)
}

// decodeDigest parses "$argon2id$v=19$m=..,t=..,p=..$salt$key". Salt and key may be padded
// or unpadded base64.
func decodeDigest(s string) (digest, error) {
	if !strings.HasPrefix(s, argon2Prefix) {
		return digest{}, ErrUnsupportedHash
	}
	fields := strings.Split(strings.TrimPrefix(s, argon2Prefix), "$")
	if len(fields) != 4 {
		return digest{}, malformed("field count")
	}
	if fields[0] != fmt.Sprintf("v=%d", argon2.Version) {
		return digest{}, malformed("version " + fields[0])
	}

	var c cost
	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &c.memory, &c.time, &c.threads); err != nil || c.String() != fields[1] {
		return digest{}, malformed("parameters")
	}
	if c.below(floor) {
		return digest{}, malformed("cost below minimum")
	}

	salt, err := decodeB64(fields[2])
	if err != nil || len(salt) < minSalt {
		return digest{}, malformed("salt")
	}
	key, err := decodeB64(fields[3])
	if err != nil || len(key) == 0 {
		return digest{}, malformed("key")
	}
	return digest{cost: c, salt: salt, key: key}, nil
}

func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// Argon2 produces and checks argon2id PHC hashes.
type Argon2 struct {
	cost      cost
	saltLen   uint32
	keyLen    uint32
	minLength int
	rand      io.Reader
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	c := cost{memory: cfg.Memory, time: cfg.Time, threads: cfg.Parallelism}
	switch {
	case c.below(floor):
		return nil, fmt.Errorf("password cost %s is below the minimum %s", c, floor)
	case cfg.SaltLength < minSalt:
		return nil, fmt.Errorf("password salt length must be >= %d", minSalt)
	case cfg.KeyLength < minKey:
		return nil, fmt.Errorf("password key length must be >= %d", minKey)
	}

	a := &Argon2{cost: c, saltLen: cfg.SaltLength, keyLen: cfg.KeyLength, minLength: cfg.MinLength, rand: cfg.Rand}
	if a.minLength == 0 {
		a.minLength = 8
	}
	if a.rand == nil {
		a.rand = rand.Reader
	}
	return a, nil
}

func (a *Argon2) derive(password string, c cost, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, c.time, c.memory, c.threads, keyLen)
}

// Hash returns the PHC encoding of password. The raw bytes are hashed as given, with no
// Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < a.minLength {
		return "", ErrPasswordTooShort
	}
	salt := make([]byte, a.saltLen)
	if _, err := io.ReadFull(a.rand, salt); err != nil {
		return "", err
	}
	return digest{cost: a.cost, salt: salt, key: a.derive(password, a.cost, salt, a.keyLen)}.encode(), nil
}

// Verify reports whether password matches encoded, recomputing with the stored cost.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	d, err := decodeDigest(encoded)
	if err != nil {
		return false, err
	}
	got := a.derive(password, d.cost, d.salt, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(got, d.key) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with a lower cost or a different key
// length than the current configuration.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	d, err := decodeDigest(encoded)
	if err != nil {
		return false, err
	}
	return d.cost.below(a.cost) || uint32(len(d.key)) != a.keyLen, nil
}
