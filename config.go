package goIdentity

import (
	"errors"
	"strings"
	"time"
)

// Config is the full engine configuration. Start from DefaultConfig and override fields.
type Config struct {
	JWT          JWTConfig
	Refresh      RefreshConfig
	Lockout      LockoutConfig
	Detection    DetectionConfig
	TOTP         TOTPConfig
	Password     PasswordConfig
	Verification VerificationConfig
	Throttle     ThrottleConfig
	Notification NotificationConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// JWTConfig configures access-token signing. Issuer and Audience are enforced on validation.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	KeyID         string
}

// RefreshConfig configures the refresh-token ledger.
type RefreshConfig struct {
	Lifetime    time.Duration
	RedisPrefix string
}

/*
====================================
LOGIN POLICY CONFIG
====================================
*/

// LockoutConfig controls the failed-login lockout policy. Threshold consecutive failures
// inside Window lock the account for Duration.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
	Window    time.Duration
}

// DetectionConfig controls the suspicious-activity rules.
type DetectionConfig struct {
	FailedLoginThreshold int
	FailedLoginWindow    time.Duration
	KnownDeviceWindow    time.Duration
}

// TOTPConfig controls second-factor codes. With EnforceReplayProtection a code is accepted at
// most once. MaxVerifyFailures wrong codes within VerifyCooldown block standalone verification
// and enabling for that user until the cooldown ends.
type TOTPConfig struct {
	Issuer                  string
	Digits                  int
	Period                  uint
	Skew                    uint
	ChallengeTTL            time.Duration
	ChallengeMaxAttempts    int
	EnforceReplayProtection bool
	MaxVerifyFailures       int
	VerifyCooldown          time.Duration
	RedisPrefix             string
}

type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	UpgradeOnLogin bool
}

/*
====================================
ACCOUNT LIFECYCLE CONFIG
====================================
*/

// VerificationConfig covers email verification and password reset tokens. VerifyURL and
// ResetURL receive the raw token appended as a "token" query parameter.
type VerificationConfig struct {
	RequireVerifiedEmail bool
	EmailTTL             time.Duration
	ResetTTL             time.Duration
	RedisPrefix          string
	VerifyURL            string
	ResetURL             string
}

// ThrottleConfig bounds registrations and password reset requests in a fixed Window. Zero
// maximums disable the corresponding check. Throttled reset requests are dropped silently.
type ThrottleConfig struct {
	SignupsPerIP   int
	ResetsPerEmail int
	ResetsPerIP    int
	Window         time.Duration
	RedisPrefix    string
}

// NotificationConfig controls outbound security mail.
type NotificationConfig struct {
	SendSecurityAlerts bool
	Timeout            time.Duration
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults: 60 minute access tokens, 7 day refresh
// tokens, lockout after 5 failures in 30 minutes for 5 minutes.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     60 * time.Minute,
			SigningMethod: "ed25519",
		},
		Refresh: RefreshConfig{
			Lifetime:    7 * 24 * time.Hour,
			RedisPrefix: "irt",
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  5 * time.Minute,
			Window:    30 * time.Minute,
		},
		Detection: DetectionConfig{
			FailedLoginThreshold: 3,
			FailedLoginWindow:    30 * time.Minute,
			KnownDeviceWindow:    90 * 24 * time.Hour,
		},
		TOTP: TOTPConfig{
			Digits:                  6,
			Period:                  30,
			Skew:                    1,
			ChallengeTTL:            5 * time.Minute,
			ChallengeMaxAttempts:    5,
			EnforceReplayProtection: true,
			MaxVerifyFailures:       5,
			VerifyCooldown:          5 * time.Minute,
			RedisPrefix:             "i2fa",
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			UpgradeOnLogin: true,
		},
		Verification: VerificationConfig{
			RequireVerifiedEmail: true,
			EmailTTL:             24 * time.Hour,
			ResetTTL:             time.Hour,
			RedisPrefix:          "isu",
		},
		Throttle: ThrottleConfig{
			SignupsPerIP:   10,
			ResetsPerEmail: 3,
			ResetsPerIP:    20,
			Window:         time.Hour,
			RedisPrefix:    "ithr",
		},
		Notification: NotificationConfig{
			SendSecurityAlerts: true,
			Timeout:            10 * time.Second,
		},
		Audit: AuditConfig{
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0 {
			return errors.New("JWT ed25519 requires PrivateKey and PublicKey")
		}
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("JWT hs256 requires a PrivateKey of at least 32 bytes")
		}
	default:
		return errors.New("JWT SigningMethod must be ed25519 or hs256")
	}
	if strings.TrimSpace(c.JWT.Issuer) == "" || strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Issuer and Audience are required")
	}

	if c.Refresh.Lifetime < time.Minute {
		return errors.New("Refresh Lifetime must be at least one minute")
	}
	if c.Refresh.Lifetime <= c.JWT.AccessTTL {
		return errors.New("Refresh Lifetime must exceed JWT AccessTTL")
	}

	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Duration <= 0 || c.Lockout.Window <= 0 {
		return errors.New("Lockout Duration and Window must be > 0")
	}

	if c.Detection.FailedLoginThreshold <= 0 {
		return errors.New("Detection FailedLoginThreshold must be > 0")
	}
	if c.Detection.FailedLoginWindow <= 0 || c.Detection.KnownDeviceWindow <= 0 {
		return errors.New("Detection windows must be > 0")
	}

	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("TOTP Issuer is required")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period == 0 {
		return errors.New("TOTP Period must be > 0")
	}
	if c.TOTP.Skew > 2 {
		return errors.New("TOTP Skew must be <= 2")
	}
	if c.TOTP.ChallengeTTL <= 0 || c.TOTP.ChallengeMaxAttempts <= 0 {
		return errors.New("TOTP ChallengeTTL and ChallengeMaxAttempts must be > 0")
	}
	if c.TOTP.MaxVerifyFailures <= 0 || c.TOTP.VerifyCooldown <= 0 {
		return errors.New("TOTP MaxVerifyFailures and VerifyCooldown must be > 0")
	}

	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	if c.Verification.EmailTTL <= 0 || c.Verification.ResetTTL <= 0 {
		return errors.New("Verification EmailTTL and ResetTTL must be > 0")
	}

	if c.Throttle.SignupsPerIP < 0 || c.Throttle.ResetsPerEmail < 0 || c.Throttle.ResetsPerIP < 0 {
		return errors.New("Throttle maximums must be >= 0")
	}
	if (c.Throttle.SignupsPerIP > 0 || c.Throttle.ResetsPerEmail > 0 || c.Throttle.ResetsPerIP > 0) && c.Throttle.Window <= 0 {
		return errors.New("Throttle Window must be > 0 when a maximum is set")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	return nil
}

func cloneConfig(in Config) Config {
	out := in
	out.JWT.PrivateKey = cloneBytes(in.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(in.JWT.PublicKey)
	return out
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
