// Package config loads identityd settings from a TOML file with IDENTITY_* environment
// overrides and turns them into a goIdentity.Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// File mirrors the TOML layout. Durations are strings such as "15m".
type File struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	SMTP     SMTPConfig     `toml:"smtp"`
	Identity IdentityConfig `toml:"identity"`
}

/* ==== SERVER CONFIG ==== */

type ServerConfig struct {
	Listen          string        `toml:"listen"`
	CookieDomain    string        `toml:"cookie_domain"`
	InsecureCookies bool          `toml:"insecure_cookies"`
	RateLimit       float64       `toml:"rate_limit"`
	RateBurst       int           `toml:"rate_burst"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	Metrics         bool          `toml:"metrics"`
}

/* ==== STORAGE CONFIG ==== */

type DatabaseConfig struct {
	URL             string        `toml:"url"`
	MaxConns        int32         `toml:"max_conns"`
	MaxConnLifetime time.Duration `toml:"max_conn_lifetime"`
	Migrate         bool          `toml:"migrate"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

/* ==== MAIL CONFIG ==== */

// SMTPConfig with an empty Host selects the logging sender.
type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

/* ==== IDENTITY CONFIG ==== */

// IdentityConfig holds the engine settings an operator is expected to change. Zero values
// keep goIdentity.DefaultConfig.
type IdentityConfig struct {
	SigningMethod  string `toml:"signing_method"`
	Secret         string `toml:"secret"`
	PrivateKeyFile string `toml:"private_key_file"`
	PublicKeyFile  string `toml:"public_key_file"`
	KeyID          string `toml:"key_id"`
	Issuer         string `toml:"issuer"`
	Audience       string `toml:"audience"`

	AccessTTL       time.Duration `toml:"access_ttl"`
	RefreshLifetime time.Duration `toml:"refresh_lifetime"`

	LockoutThreshold int           `toml:"lockout_threshold"`
	LockoutDuration  time.Duration `toml:"lockout_duration"`

	TOTPIssuer string `toml:"totp_issuer"`

	RequireVerifiedEmail *bool  `toml:"require_verified_email"`
	VerifyURL            string `toml:"verify_url"`
	ResetURL             string `toml:"reset_url"`

	SecurityAlerts *bool `toml:"security_alerts"`

	// Audit streams every recorded security event to stdout as JSON lines. AuditEvents
	// narrows the stream to the listed event types.
	Audit       bool     `toml:"audit"`
	AuditEvents []string `toml:"audit_events"`
}

// Default returns the settings used when no file is given.
func Default() File {
	return File{
		Server: ServerConfig{
			Listen:          ":8080",
			RateLimit:       5,
			RateBurst:       20,
			ShutdownTimeout: 10 * time.Second,
			Metrics:         true,
		},
		Database: DatabaseConfig{Migrate: true},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		SMTP:     SMTPConfig{Port: 587},
		Identity: IdentityConfig{SigningMethod: "ed25519"},
	}
}

// Load reads path when non-empty, then applies environment overrides and validates.
func Load(path string) (*File, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (f *File) applyEnv() error {
	f.Server.Listen = getEnv("IDENTITY_LISTEN", f.Server.Listen)
	f.Database.URL = getEnv("IDENTITY_DB_URL", f.Database.URL)
	f.Redis.Addr = getEnv("IDENTITY_REDIS_ADDR", f.Redis.Addr)
	f.Redis.Password = getEnv("IDENTITY_REDIS_PASSWORD", f.Redis.Password)
	f.SMTP.Host = getEnv("IDENTITY_SMTP_HOST", f.SMTP.Host)
	f.SMTP.Username = getEnv("IDENTITY_SMTP_USERNAME", f.SMTP.Username)
	f.SMTP.Password = getEnv("IDENTITY_SMTP_PASSWORD", f.SMTP.Password)
	f.Identity.Secret = getEnv("IDENTITY_JWT_SECRET", f.Identity.Secret)
	f.Identity.PrivateKeyFile = getEnv("IDENTITY_JWT_PRIVATE_KEY_FILE", f.Identity.PrivateKeyFile)
	f.Identity.PublicKeyFile = getEnv("IDENTITY_JWT_PUBLIC_KEY_FILE", f.Identity.PublicKeyFile)

	var err error
	if f.Redis.DB, err = getEnvAsInt("IDENTITY_REDIS_DB", f.Redis.DB); err != nil {
		return err
	}
	if f.SMTP.Port, err = getEnvAsInt("IDENTITY_SMTP_PORT", f.SMTP.Port); err != nil {
		return err
	}
	return nil
}

// Validate checks the server-side settings. Engine settings are checked by Engine.
func (f *File) Validate() error {
	if strings.TrimSpace(f.Server.Listen) == "" {
		return errors.New("server.listen is required")
	}
	if strings.TrimSpace(f.Database.URL) == "" {
		return errors.New("database.url is required (or IDENTITY_DB_URL)")
	}
	if strings.TrimSpace(f.Redis.Addr) == "" {
		return errors.New("redis.addr is required")
	}
	if f.Server.RateLimit < 0 || f.Server.RateBurst < 0 {
		return errors.New("server.rate_limit and server.rate_burst must be >= 0")
	}
	if f.Server.RateLimit > 0 && f.Server.RateBurst == 0 {
		return errors.New("server.rate_burst must be > 0 when rate_limit is set")
	}
	if f.SMTP.Host != "" && strings.TrimSpace(f.SMTP.From) == "" {
		return errors.New("smtp.from is required when smtp.host is set")
	}
	switch strings.ToLower(f.Identity.SigningMethod) {
	case "", "ed25519":
		if f.Identity.PrivateKeyFile == "" || f.Identity.PublicKeyFile == "" {
			return errors.New("identity.private_key_file and identity.public_key_file are required for ed25519")
		}
	case "hs256":
		if len(f.Identity.Secret) < 32 {
			return errors.New("identity.secret must be at least 32 bytes for hs256")
		}
	default:
		return fmt.Errorf("identity.signing_method %q is not supported", f.Identity.SigningMethod)
	}
	for _, name := range f.Identity.AuditEvents {
		if !goIdentity.EventType(name).Valid() {
			return fmt.Errorf("identity.audit_events: unknown event type %q", name)
		}
	}
	return nil
}

// Engine builds the engine configuration, reading key files as needed.
func (f *File) Engine() (goIdentity.Config, error) {
	id := f.Identity
	cfg := goIdentity.DefaultConfig()

	if id.SigningMethod != "" {
		cfg.JWT.SigningMethod = strings.ToLower(id.SigningMethod)
	}
	switch cfg.JWT.SigningMethod {
	case "hs256":
		cfg.JWT.PrivateKey = []byte(id.Secret)
	default:
		priv, err := os.ReadFile(id.PrivateKeyFile)
		if err != nil {
			return goIdentity.Config{}, fmt.Errorf("read private key: %w", err)
		}
		pub, err := os.ReadFile(id.PublicKeyFile)
		if err != nil {
			return goIdentity.Config{}, fmt.Errorf("read public key: %w", err)
		}
		cfg.JWT.PrivateKey, cfg.JWT.PublicKey = priv, pub
	}
	cfg.JWT.KeyID = id.KeyID
	cfg.JWT.Issuer = id.Issuer
	cfg.JWT.Audience = id.Audience
	if id.AccessTTL > 0 {
		cfg.JWT.AccessTTL = id.AccessTTL
	}
	if id.RefreshLifetime > 0 {
		cfg.Refresh.Lifetime = id.RefreshLifetime
	}
	if id.LockoutThreshold > 0 {
		cfg.Lockout.Threshold = id.LockoutThreshold
	}
	if id.LockoutDuration > 0 {
		cfg.Lockout.Duration = id.LockoutDuration
	}
	cfg.TOTP.Issuer = id.TOTPIssuer
	if cfg.TOTP.Issuer == "" {
		cfg.TOTP.Issuer = id.Issuer
	}
	if id.RequireVerifiedEmail != nil {
		cfg.Verification.RequireVerifiedEmail = *id.RequireVerifiedEmail
	}
	cfg.Verification.VerifyURL = id.VerifyURL
	cfg.Verification.ResetURL = id.ResetURL
	if id.SecurityAlerts != nil {
		cfg.Notification.SendSecurityAlerts = *id.SecurityAlerts
	}
	cfg.Audit.Enabled = id.Audit
	cfg.Metrics.Enabled = f.Server.Metrics

	if err := cfg.Validate(); err != nil {
		return goIdentity.Config{}, err
	}
	return cfg, nil
}

func getEnv(key string, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) (int, error) {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return val, nil
}
