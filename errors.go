package goIdentity

import (
	"errors"

	"github.com/MrEthical07/goIdentity/events"
	"github.com/MrEthical07/goIdentity/jwt"
)

var (
	// ErrInvalidCredentials covers unknown accounts and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked carries no unlock time.
	ErrAccountLocked = errors.New("account locked")

	ErrEmailUnverified = errors.New("email address not verified")
	ErrSessionExpired  = errors.New("session expired")
	ErrTokenRevoked    = errors.New("refresh token revoked")
	ErrInternalFailure = errors.New("internal failure")
	ErrEngineNotReady  = errors.New("engine not ready")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrPasswordPolicy  = errors.New("password does not meet policy")
	ErrRateLimited     = errors.New("too many requests")

	ErrInvalidTwoFactorCode      = errors.New("invalid two-factor code")
	ErrTwoFactorChallengeInvalid = errors.New("two-factor challenge invalid or expired")
	ErrTwoFactorAlreadyEnabled   = errors.New("two-factor already enabled")
	ErrTwoFactorNotInitiated     = errors.New("two-factor setup not started")

	ErrVerificationTokenInvalid = errors.New("email verification token invalid")
	ErrResetTokenInvalid        = errors.New("password reset token invalid")

	// ErrTokenInvalid and ErrTokenExpired are returned by ValidateAccessToken.
	ErrTokenInvalid = jwt.ErrTokenInvalid
	ErrTokenExpired = jwt.ErrTokenExpired

	ErrInvalidEventType = events.ErrInvalidEventType
)
