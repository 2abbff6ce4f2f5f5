package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/events"
)

// Failure classifies why a flow did not succeed.
type Failure int

const (
	FailureNone Failure = iota
	FailureInvalidCredentials
	FailureAccountLocked
	FailureEmailUnverified
	FailureSessionExpired
	FailureTokenRevoked
	FailureInvalidTwoFactorCode
	FailureTwoFactorChallengeInvalid
	FailureInternal
)

// Meta is the request context passed explicitly into every flow.
type Meta struct {
	IP        string
	UserAgent string
}

// UserRecord is the flow-local view of a stored user.
type UserRecord struct {
	ID               string
	Username         string
	Email            string
	DisplayName      string
	PasswordHash     string
	Roles            []string
	IsActive         bool
	IsDeleted        bool
	EmailVerified    bool
	FailedAttempts   int
	LockoutEnd       *time.Time
	TwoFactorEnabled bool
}

// LockedAt reports whether the user is locked out at now.
func (u UserRecord) LockedAt(now time.Time) bool {
	return u.LockoutEnd != nil && now.Before(*u.LockoutEnd)
}

// CanSignIn reports whether the record may hold a session at all.
func (u UserRecord) CanSignIn() bool {
	return u.IsActive && !u.IsDeleted
}

// IssuedTokens is the token pair handed to a signed-in user.
type IssuedTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	RefreshTokenID   string
}

// AlertKind names the security notifications flows may trigger.
type AlertKind int

const (
	AlertLockedOut AlertKind = iota
	AlertNewDevice
	AlertSuspiciousActivity
)

// Recorder is the event sink shared by all flows.
type Recorder func(context.Context, events.Entry) events.SecurityEvent

func noopRecorder(context.Context, events.Entry) events.SecurityEvent { return events.SecurityEvent{} }

func noopMetric(int) {}

func noopWarn(string, ...any) {}
