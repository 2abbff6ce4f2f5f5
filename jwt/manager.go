package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the algorithm used to sign access tokens.
type SigningMethod string

const (
	// MethodEd25519 signs with an Ed25519 private key (EdDSA).
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with a shared HMAC-SHA256 secret.
	MethodHS256 SigningMethod = "hs256"
)

const minHMACKeySize = 32

var (
	// ErrTokenInvalid is returned for any token that fails signature, issuer, audience or shape checks.
	ErrTokenInvalid = errors.New("access token invalid")
	// ErrTokenExpired is returned for a well-formed token whose exp has passed.
	ErrTokenExpired = errors.New("access token expired")
)

// Config holds the issuer settings. Issuer and Audience are mandatory.
//
// Ed25519 keys may be raw (64-byte private, 32-byte public) or PEM. PublicKey may be omitted
// when VerifyKeys lists the accepted keys by kid, which is how signing keys are rotated.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	KeyID         string
	VerifyKeys    map[string][]byte

	// Now overrides the clock used for iat/exp. Defaults to time.Now.
	Now func() time.Time
}

// Manager signs and verifies access tokens. Keys are decoded once by NewManager.
type Manager struct {
	ttl      time.Duration
	issuer   string
	audience string
	kid      string
	now      func() time.Time

	method  jwt.SigningMethod
	signKey any
	// verify holds the key for tokens without a kid requirement; byKID is used when non-empty.
	verify any
	byKID  map[string]any
	parser *jwt.Parser
}

// Subject is the identity an access token is minted for.
type Subject struct {
	UserID      string
	DisplayName string
	Roles       []string
}

// AccessClaims is the claim set carried by every access token. The subject id is stored in
// both sub and uid; jti is a random uuid.
type AccessClaims struct {
	UID   string   `json:"uid"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{
		ttl:      cfg.AccessTTL,
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		kid:      strings.TrimSpace(cfg.KeyID),
		now:      cfg.Now,
	}
	switch {
	case m.ttl <= 0:
		return nil, errors.New("invalid TTL configuration")
	case m.issuer == "":
		return nil, errors.New("issuer is required")
	case m.audience == "":
		return nil, errors.New("audience is required")
	}
	if m.now == nil {
		m.now = time.Now
	}

	var err error
	switch cfg.SigningMethod {
	case MethodHS256:
		err = m.useHMAC(cfg)
	case MethodEd25519:
		err = m.useEd25519(cfg)
	default:
		err = fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}
	if err != nil {
		return nil, err
	}
	if m.kid != "" && len(m.byKID) > 0 {
		if _, ok := m.byKID[m.kid]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	return m, nil
}

func (m *Manager) useHMAC(cfg Config) error {
	if len(cfg.PrivateKey) < minHMACKeySize {
		return fmt.Errorf("hs256 requires a key of at least %d bytes", minHMACKeySize)
	}
	secret := append([]byte(nil), cfg.PrivateKey...)
	m.method, m.signKey, m.verify = jwt.SigningMethodHS256, secret, secret
	if len(cfg.VerifyKeys) > 0 {
		m.byKID = make(map[string]any, len(cfg.VerifyKeys))
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return errors.New("verify key map contains empty kid")
			}
			m.byKID[kid] = append([]byte(nil), key...)
		}
	}
	return nil
}

func (m *Manager) useEd25519(cfg Config) error {
	priv, err := parseEdPrivateKey(cfg.PrivateKey)
	if err != nil {
		return err
	}
	m.method, m.signKey = jwt.SigningMethodEdDSA, priv

	switch {
	case len(cfg.PublicKey) > 0:
		if m.verify, err = parseEdPublicKey(cfg.PublicKey); err != nil {
			return err
		}
	case len(cfg.VerifyKeys) == 0:
		return errors.New("ed25519 requires public key or verify key set")
	default:
		m.verify = priv.Public()
	}

	if len(cfg.VerifyKeys) > 0 {
		m.byKID = make(map[string]any, len(cfg.VerifyKeys))
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return errors.New("verify key map contains empty kid")
			}
			pub, err := parseEdPublicKey(key)
			if err != nil {
				return fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
			m.byKID[kid] = pub
		}
	}
	return nil
}

// TTL returns the configured access-token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// CreateAccess mints a signed access token for subject. It returns the compact token and the
// claims that were signed.
func (m *Manager) CreateAccess(subject Subject) (string, *AccessClaims, error) {
	if strings.TrimSpace(subject.UserID) == "" {
		return "", nil, errors.New("subject id is required")
	}

	now := m.now()
	claims := &AccessClaims{
		UID:   subject.UserID,
		Name:  subject.DisplayName,
		Roles: append([]string(nil), subject.Roles...),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject.UserID,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.kid != "" {
		token.Header["kid"] = m.kid
	}
	signed, err := token.SignedString(m.signKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ParseAccess verifies tokenStr and returns its claims. Every failure is reported as
// ErrTokenExpired or ErrTokenInvalid.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return nil, ErrTokenInvalid
	}

	claims := &AccessClaims{}
	token, err := m.parser.ParseWithClaims(tokenStr, claims, m.keyFor)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	case !token.Valid:
		return nil, ErrTokenInvalid
	case claims.UID == "" || claims.UID != claims.Subject:
		return nil, fmt.Errorf("%w: subject mismatch", ErrTokenInvalid)
	case claims.ID == "":
		return nil, fmt.Errorf("%w: missing jti", ErrTokenInvalid)
	}
	return claims, nil
}

func (m *Manager) keyFor(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if len(m.byKID) > 0 {
		key, ok := m.byKID[kid]
		if !ok {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return key, nil
	}
	if m.kid != "" && kid != m.kid {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	return m.verify, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(append([]byte(nil), key...)), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(append([]byte(nil), key...)), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
