package goIdentity

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/events"
	internalaudit "github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/internal/stores"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/refresh"
	"github.com/MrEthical07/goIdentity/totp"
	"github.com/redis/go-redis/v9"
)

const dummyPassword = "goIdentity-timing-equalizer"

// Builder assembles an Engine. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	credentials CredentialStore
	eventStore  events.Store
	notifier    NotificationSender
	auditSink   AuditSink
	clock       Clock
	random      io.Reader
	warn        func(string, ...any)

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing refresh tokens, login challenges and single-use tokens.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

// WithEventStore sets the security event log. Defaults to an in-memory store, which is only
// suitable for tests and single-process development.
func (b *Builder) WithEventStore(store events.Store) *Builder {
	b.eventStore = store
	return b
}

func (b *Builder) WithNotificationSender(sender NotificationSender) *Builder {
	b.notifier = sender
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

// WithRandom overrides the source of token entropy. Defaults to crypto/rand.
func (b *Builder) WithRandom(r io.Reader) *Builder {
	b.random = r
	return b
}

// WithWarnFunc overrides operational logging. Defaults to log.Printf.
func (b *Builder) WithWarnFunc(warn func(string, ...any)) *Builder {
	b.warn = warn
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = systemClock{}
	}
	warn := b.warn
	if warn == nil {
		warn = log.Printf
	}
	eventStore := b.eventStore
	if eventStore == nil {
		eventStore = events.NewMemoryStore()
	}

	engine := &Engine{
		config:      cloneConfig(cfg),
		clock:       clock,
		random:      b.random,
		credentials: b.credentials,
		notifier:    b.notifier,
		warn:        warn,
		metrics:     NewMetrics(cfg.Metrics),
	}

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	recorder, err := events.NewRecorder(events.RecorderConfig{
		Store:   eventStore,
		Now:     clock.Now,
		Publish: engine.publishEvent,
		Warn:    warn,
	})
	if err != nil {
		return nil, err
	}
	engine.recorder = recorder

	detector, err := events.NewDetector(recorder, events.DetectorConfig{
		FailedLoginThreshold: cfg.Detection.FailedLoginThreshold,
		FailedLoginWindow:    cfg.Detection.FailedLoginWindow,
		KnownDeviceWindow:    cfg.Detection.KnownDeviceWindow,
	})
	if err != nil {
		return nil, err
	}
	engine.detector = detector

	ledger, err := refresh.NewLedger(
		refresh.NewRedisStore(b.redis, cfg.Refresh.RedisPrefix),
		refresh.SubjectValidatorFunc(engine.validateSubject),
		recorder,
		refresh.Config{
			Lifetime: cfg.Refresh.Lifetime,
			Now:      clock.Now,
			Rand:     b.random,
		},
	)
	if err != nil {
		return nil, err
	}
	engine.ledger = ledger

	engine.challenges = stores.NewTwoFactorChallengeStore(b.redis, cfg.TOTP.RedisPrefix, clock.Now)
	if cfg.TOTP.EnforceReplayProtection {
		// A step older than the skew window no longer validates, so the record can lapse.
		window := time.Duration(2*cfg.TOTP.Skew+2) * time.Duration(cfg.TOTP.Period) * time.Second
		engine.totpSteps = stores.NewTwoFactorStepStore(b.redis, cfg.TOTP.RedisPrefix, window)
	}
	engine.totpTries = limiters.NewAttemptLimiter(b.redis, limiters.AttemptConfig{
		Prefix:      cfg.TOTP.RedisPrefix,
		MaxFailures: cfg.TOTP.MaxVerifyFailures,
		Cooldown:    cfg.TOTP.VerifyCooldown,
	})
	engine.singleUse = stores.NewSingleUseStore(b.redis, cfg.Verification.RedisPrefix)
	engine.signups = limiters.NewRequestLimiter(b.redis, limiters.RequestConfig{
		Prefix:   cfg.Throttle.RedisPrefix + ":signup",
		MaxPerIP: cfg.Throttle.SignupsPerIP,
		Window:   cfg.Throttle.Window,
	})
	engine.resets = limiters.NewRequestLimiter(b.redis, limiters.RequestConfig{
		Prefix:           cfg.Throttle.RedisPrefix + ":reset",
		MaxPerIdentifier: cfg.Throttle.ResetsPerEmail,
		MaxPerIP:         cfg.Throttle.ResetsPerIP,
		Window:           cfg.Throttle.Window,
	})

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
		MinLength:   cfg.Password.MinLength,
		Rand:        b.random,
	})
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher
	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}
	engine.dummyHash = dummy

	tm, err := totp.NewManager(totp.Config{
		Issuer: cfg.TOTP.Issuer,
		Period: cfg.TOTP.Period,
		Digits: cfg.TOTP.Digits,
		Skew:   cfg.TOTP.Skew,
		Rand:   b.random,
	})
	if err != nil {
		return nil, err
	}
	engine.totp = tm

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.JWT.SigningMethod)),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		KeyID:         cfg.JWT.KeyID,
		Now:           clock.Now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	b.built = true

	return engine, nil
}

func (e *Engine) publishEvent(ctx context.Context, event events.SecurityEvent) {
	if e.audit == nil {
		return
	}
	e.audit.Emit(ctx, AuditEvent{
		ID:          event.ID,
		Timestamp:   event.Timestamp,
		EventType:   string(event.Type),
		UserID:      event.UserID,
		Description: event.Description,
		IP:          event.IP,
		UserAgent:   event.UserAgent,
		Fingerprint: event.Fingerprint,
		Success:     event.Succeeded,
		Data:        event.Data,
	})
}
