package goIdentity

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/events"
	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/internal/stores"
	"github.com/MrEthical07/goIdentity/notify"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/google/uuid"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{3,64}$`)

const defaultRole = "user"

// Register creates an unverified account and issues a single-use email verification token,
// which is mailed to the user and also returned. While Verification.RequireVerifiedEmail is
// set the account cannot sign in until VerifyEmail consumes the token.
func (e *Engine) Register(ctx context.Context, req RegisterRequest, meta RequestMeta) (*Registration, error) {
	if e == nil || e.credentials == nil {
		return nil, ErrEngineNotReady
	}

	username := strings.TrimSpace(req.Username)
	if !usernamePattern.MatchString(username) {
		return nil, ErrInvalidRequest
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil || addr.Name != "" {
		return nil, ErrInvalidRequest
	}
	email := addr.Address
	if e.throttled(ctx, e.signups, "", meta.IP) {
		return nil, ErrRateLimited
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = username
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) {
			return nil, ErrPasswordPolicy
		}
		e.warn("goIdentity: password hash failed during registration: %v", err)
		return nil, ErrInternalFailure
	}

	user, err := e.credentials.CreateUser(ctx, NewUser{
		Username:           username,
		NormalizedUsername: normalizeIdentifier(username),
		Email:              email,
		NormalizedEmail:    normalizeIdentifier(email),
		DisplayName:        displayName,
		PasswordHash:       hash,
		Roles:              []string{defaultRole},
		SecurityStamp:      uuid.NewString(),
	})
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			e.metricInc(MetricRegistrationDuplicate)
			return nil, ErrUserExists
		}
		e.warn("goIdentity: user creation failed: %v", err)
		return nil, ErrInternalFailure
	}

	token, err := e.issueSingleUse(ctx, stores.PurposeEmailVerification, user.ID, e.config.Verification.EmailTTL)
	if err != nil {
		e.warn("goIdentity: verification token issue failed for user %q: %v", user.ID, err)
		return nil, ErrInternalFailure
	}

	e.metricInc(MetricRegistrationSuccess)
	e.record(ctx, events.Entry{
		UserID:      user.ID,
		Type:        events.EventUserRegistered,
		Description: "Account registered",
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		Succeeded:   true,
	})

	msg, rerr := notify.VerificationEmail(user.DisplayName, tokenLink(e.config.Verification.VerifyURL, token), e.config.Verification.EmailTTL)
	e.sendAsync(user.Email, msg, rerr)

	return &Registration{
		User:              *toUserInfo(toFlowUser(user)),
		VerificationToken: token,
	}, nil
}

// VerifyEmail consumes a verification token. Each token succeeds at most once.
func (e *Engine) VerifyEmail(ctx context.Context, token string, meta RequestMeta) error {
	if e == nil || e.singleUse == nil {
		return ErrEngineNotReady
	}
	userID, err := e.consumeSingleUse(ctx, stores.PurposeEmailVerification, token)
	if err != nil {
		if errors.Is(err, stores.ErrTokenNotFound) {
			e.metricInc(MetricEmailVerificationFailure)
			return ErrVerificationTokenInvalid
		}
		e.warn("goIdentity: verification token consume failed: %v", err)
		return ErrInternalFailure
	}

	if err := e.credentials.MarkEmailVerified(ctx, userID); err != nil {
		if isUserNotFound(err) {
			e.metricInc(MetricEmailVerificationFailure)
			return ErrVerificationTokenInvalid
		}
		e.warn("goIdentity: mark email verified failed for user %q: %v", userID, err)
		return ErrInternalFailure
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.record(ctx, events.Entry{
		UserID:      userID,
		Type:        events.EventEmailVerified,
		Description: "Email address verified",
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		Succeeded:   true,
	})
	return nil
}

func (e *Engine) issueSingleUse(ctx context.Context, purpose stores.Purpose, userID string, ttl time.Duration) (string, error) {
	token, err := internal.NewToken(e.random, internal.TokenBytes)
	if err != nil {
		return "", err
	}
	if err := e.singleUse.Issue(ctx, purpose, internal.HashToken(token), userID, ttl); err != nil {
		return "", err
	}
	return token, nil
}

func (e *Engine) consumeSingleUse(ctx context.Context, purpose stores.Purpose, token string) (string, error) {
	if !internal.ValidTokenShape(token, internal.TokenBytes) {
		return "", stores.ErrTokenNotFound
	}
	return e.singleUse.Consume(ctx, purpose, internal.HashToken(token))
}

func (e *Engine) peekSingleUse(ctx context.Context, purpose stores.Purpose, token string) (string, time.Duration, error) {
	if !internal.ValidTokenShape(token, internal.TokenBytes) {
		return "", 0, stores.ErrTokenNotFound
	}
	return e.singleUse.Peek(ctx, purpose, internal.HashToken(token))
}

// throttled reports whether l refused the request. A limiter outage is logged and the request
// goes through.
func (e *Engine) throttled(ctx context.Context, l *limiters.RequestLimiter, identifier, ip string) bool {
	err := l.Check(ctx, identifier, ip)
	switch {
	case err == nil:
		return false
	case errors.Is(err, limiters.ErrLimited):
		e.metricInc(MetricRequestThrottled)
		return true
	default:
		e.warn("goIdentity: throttle check failed: %v", err)
		return false
	}
}
