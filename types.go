package goIdentity

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/events"
	"github.com/MrEthical07/goIdentity/jwt"
)

// RequestMeta is the caller context recorded with every security-relevant operation.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// User is the stored account record. Lookups never return soft-deleted users.
type User struct {
	ID                 string
	Username           string
	NormalizedUsername string
	Email              string
	NormalizedEmail    string
	DisplayName        string
	PasswordHash       string
	Roles              []string
	IsActive           bool
	IsDeleted          bool
	EmailVerified      bool
	FailedAttempts     int
	LastFailedAt       *time.Time
	LockoutEnd         *time.Time
	LockoutReason      string
	TwoFactorEnabled   bool
	SecurityStamp      string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewUser is the input to CredentialStore.CreateUser. Normalized fields are filled by the
// engine.
type NewUser struct {
	Username           string
	NormalizedUsername string
	Email              string
	NormalizedEmail    string
	DisplayName        string
	PasswordHash       string
	Roles              []string
	SecurityStamp      string
}

// CredentialStore persists users and their security counters.
//
// Lookups return ErrUserNotFound for unknown or soft-deleted users. IncrementFailedAttempts
// must be a single read-modify-write: when the previous failure predates windowStart the count
// restarts at one. UpdateLockout with a non-nil until only applies when the account is not
// already locked at now and reports whether it did; a nil until clears any lock. An empty
// secret passed to SetTwoFactorSecret clears it.
type CredentialStore interface {
	FindByNameOrEmail(ctx context.Context, normalized string) (*User, error)
	FindByID(ctx context.Context, userID string) (*User, error)
	CreateUser(ctx context.Context, user NewUser) (*User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	UpdateSecurityStamp(ctx context.Context, userID, stamp string) error
	MarkEmailVerified(ctx context.Context, userID string) error
	IncrementFailedAttempts(ctx context.Context, userID string, windowStart, now time.Time) (int, error)
	ResetFailedAttempts(ctx context.Context, userID string) error
	UpdateLockout(ctx context.Context, userID string, until *time.Time, reason string, now time.Time) (bool, error)
	GetTwoFactorSecret(ctx context.Context, userID string) (string, error)
	SetTwoFactorSecret(ctx context.Context, userID, secret string) error
	SetTwoFactorEnabled(ctx context.Context, userID string, enabled bool) error
}

// NotificationSender delivers HTML mail. It reports delivery success; the engine logs
// failures and never retries.
type NotificationSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) bool
}

// Clock is the engine's time source.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// AuthStatus is the top-level outcome of a login or refresh.
type AuthStatus int

const (
	StatusFailed AuthStatus = iota
	StatusSuccess
	// StatusRequiresTwoFactor is success-shaped: the password was accepted and the caller must
	// complete CompleteTwoFactorLogin with TwoFactorChallenge.
	StatusRequiresTwoFactor
)

// FailureKind classifies a StatusFailed result.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureInvalidCredentials
	FailureAccountLocked
	FailureEmailUnverified
	FailureSessionExpired
	FailureTokenRevoked
	FailureInvalidTwoFactorCode
	FailureTwoFactorChallengeInvalid
	FailureInternal
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureInvalidCredentials:
		return "invalid_credentials"
	case FailureAccountLocked:
		return "account_locked"
	case FailureEmailUnverified:
		return "email_unverified"
	case FailureSessionExpired:
		return "session_expired"
	case FailureTokenRevoked:
		return "token_revoked"
	case FailureInvalidTwoFactorCode:
		return "invalid_two_factor_code"
	case FailureTwoFactorChallengeInvalid:
		return "two_factor_challenge_invalid"
	default:
		return "internal"
	}
}

// Err returns the sentinel matching k, or nil for FailureNone.
func (k FailureKind) Err() error {
	switch k {
	case FailureNone:
		return nil
	case FailureInvalidCredentials:
		return ErrInvalidCredentials
	case FailureAccountLocked:
		return ErrAccountLocked
	case FailureEmailUnverified:
		return ErrEmailUnverified
	case FailureSessionExpired:
		return ErrSessionExpired
	case FailureTokenRevoked:
		return ErrTokenRevoked
	case FailureInvalidTwoFactorCode:
		return ErrInvalidTwoFactorCode
	case FailureTwoFactorChallengeInvalid:
		return ErrTwoFactorChallengeInvalid
	default:
		return ErrInternalFailure
	}
}

// UserInfo is the minimal user view returned to signed-in clients.
type UserInfo struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles"`
}

// AuthResult is returned by Authenticate, CompleteTwoFactorLogin and Refresh.
type AuthResult struct {
	Status  AuthStatus
	Failure FailureKind

	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             *UserInfo

	TwoFactorChallenge string
	TwoFactorExpiresAt time.Time

	// Suspicious is set when detection flagged the login. It never changes Status.
	Suspicious bool
}

// TwoFactorSetup is the transient result of GenerateTwoFactorSetup.
type TwoFactorSetup struct {
	Secret          string
	DisplaySecret   string
	ProvisioningURI string
}

// RegisterRequest is the input to Register.
type RegisterRequest struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

// Registration is the result of Register. VerificationToken is also mailed to the user.
type Registration struct {
	User              UserInfo
	VerificationToken string
}

type (
	AccessClaims  = jwt.AccessClaims
	SecurityEvent = events.SecurityEvent
	EventType     = events.EventType
	EventFilter   = events.Filter
	Assessment    = events.Assessment
)

// AuditEvent is the streamed form of a SecurityEvent.
type AuditEvent = internalaudit.Event

// AuditSink receives streamed security events.
type AuditSink = internalaudit.Sink

// AuditSinkFunc adapts a function to AuditSink.
type AuditSinkFunc = internalaudit.SinkFunc

type StreamSink = internalaudit.StreamSink

type JSONLinesSink = internalaudit.JSONLinesSink

// AuditStats reports the audit dispatcher's delivery counters. Zero when auditing is off.
type AuditStats = internalaudit.Stats

// DiscardAuditSink accepts and forgets every event.
var DiscardAuditSink AuditSink = internalaudit.Discard

func NewStreamSink(buffer int) *StreamSink {
	return internalaudit.NewStreamSink(buffer)
}

// NewJSONLinesSink writes one JSON object per event to w. When eventTypes is non-empty only
// those types are written.
func NewJSONLinesSink(w io.Writer, eventTypes ...EventType) *JSONLinesSink {
	types := make([]string, len(eventTypes))
	for i, t := range eventTypes {
		types[i] = string(t)
	}
	return internalaudit.NewJSONLinesSink(w, types...)
}

// TeeAuditSinks delivers every event to each sink in turn.
func TeeAuditSinks(sinks ...AuditSink) AuditSink {
	return internalaudit.Tee(sinks...)
}
