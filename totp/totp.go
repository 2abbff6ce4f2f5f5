package totp

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Config controls generated secrets and the validation window.
type Config struct {
	Issuer     string
	Period     uint
	Digits     int
	Skew       uint
	SecretSize uint
	Rand       io.Reader
}

// DefaultConfig returns RFC 6238 defaults: 30 second steps, 6 digits, SHA1, 20 byte secrets
// and one step of drift tolerated in each direction.
func DefaultConfig(issuer string) Config {
	return Config{
		Issuer:     issuer,
		Period:     30,
		Digits:     6,
		Skew:       1,
		SecretSize: 20,
	}
}

// Setup is the transient result of a setup handshake. It is never persisted as such; only
// Secret is stored against the user.
type Setup struct {
	Secret          string
	DisplaySecret   string
	ProvisioningURI string
}

// Manager generates and validates TOTP secrets.
type Manager struct {
	config Config
	opts   totp.ValidateOpts
}

// NewManager validates cfg.
func NewManager(cfg Config) (*Manager, error) {
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	if cfg.Issuer == "" {
		return nil, errors.New("totp issuer is required")
	}
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.Digits != 6 && cfg.Digits != 8 {
		return nil, errors.New("totp digits must be 6 or 8")
	}
	if cfg.Skew > 2 {
		return nil, errors.New("totp skew must be <= 2")
	}
	if cfg.SecretSize == 0 {
		cfg.SecretSize = 20
	}
	if cfg.SecretSize < 16 {
		return nil, errors.New("totp secret must be at least 16 bytes")
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}

	return &Manager{
		config: cfg,
		opts: totp.ValidateOpts{
			Period:    cfg.Period,
			Skew:      cfg.Skew,
			Digits:    otp.Digits(cfg.Digits),
			Algorithm: otp.AlgorithmSHA1,
		},
	}, nil
}

// GenerateSetup creates a fresh secret for account and the matching provisioning URI.
func (m *Manager) GenerateSetup(account string) (*Setup, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return nil, errors.New("totp account label is required")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.config.Issuer,
		AccountName: account,
		Period:      m.config.Period,
		SecretSize:  m.config.SecretSize,
		Digits:      otp.Digits(m.config.Digits),
		Algorithm:   otp.AlgorithmSHA1,
		Rand:        m.config.Rand,
	})
	if err != nil {
		return nil, err
	}

	return &Setup{
		Secret:          key.Secret(),
		DisplaySecret:   FormatSecret(key.Secret()),
		ProvisioningURI: key.URL(),
	}, nil
}

// Validate reports whether code is valid for secret at the given instant. Codes of the wrong
// length or containing non-digits are simply invalid.
func (m *Manager) Validate(secret, code string, at time.Time) (bool, error) {
	_, ok, err := m.Match(secret, code, at)
	return ok, err
}

// Match is Validate that also returns the time step the code belongs to. Callers persist the
// step so the same code cannot be accepted twice inside the skew window.
func (m *Manager) Match(secret, code string, at time.Time) (int64, bool, error) {
	if secret == "" {
		return 0, false, errors.New("empty totp secret")
	}
	code = strings.ReplaceAll(strings.TrimSpace(code), " ", "")
	if len(code) != m.config.Digits || !isDigits(code) {
		return 0, false, nil
	}

	secret = NormalizeSecret(secret)
	period := int64(m.config.Period)
	skew := int64(m.config.Skew)
	current := at.UTC().Unix() / period

	matched := int64(-1)
	for step := current - skew; step <= current+skew; step++ {
		want, err := totp.GenerateCodeCustom(secret, time.Unix(step*period, 0).UTC(), m.opts)
		if err != nil {
			return 0, false, err
		}
		// Highest matching step wins.
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			matched = step
		}
	}
	if matched < 0 {
		return 0, false, nil
	}
	return matched, true, nil
}

// GenerateCode returns the code for secret at the given instant.
func (m *Manager) GenerateCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(NormalizeSecret(secret), at.UTC(), m.opts)
}

// FormatSecret upper-cases secret and splits it into space separated groups of four.
func FormatSecret(secret string) string {
	secret = NormalizeSecret(secret)

	var b strings.Builder
	b.Grow(len(secret) + len(secret)/4)
	for i, r := range secret {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeSecret strips display spacing and padding from a base32 secret.
func NormalizeSecret(secret string) string {
	secret = strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
	return strings.TrimRight(secret, "=")
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
