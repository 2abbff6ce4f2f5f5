package goIdentity

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"strings"

	"github.com/MrEthical07/goIdentity/events"
	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/internal/stores"
	"github.com/MrEthical07/goIdentity/notify"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/google/uuid"
)

const reasonPasswordReset = "password reset"

// ForgotPassword starts a password reset for the account registered under email. Only the
// email address is matched, never the username. The result is the same whether or not such an
// account exists; only backend failures return an error.
func (e *Engine) ForgotPassword(ctx context.Context, email string, meta RequestMeta) error {
	if e == nil || e.credentials == nil {
		return ErrEngineNotReady
	}
	e.metricInc(MetricPasswordResetRequest)
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return nil
	}
	normalized := normalizeIdentifier(addr.Address)
	if e.throttled(ctx, e.resets, normalized, meta.IP) {
		return nil
	}

	user, err := e.credentials.FindByNameOrEmail(ctx, normalized)
	if err != nil {
		if isUserNotFound(err) {
			return nil
		}
		e.warn("goIdentity: forgot-password lookup failed: %v", err)
		return ErrInternalFailure
	}
	if user.NormalizedEmail != normalized {
		return nil
	}
	if !user.IsActive || user.IsDeleted {
		return nil
	}

	token, err := e.issueSingleUse(ctx, stores.PurposePasswordReset, user.ID, e.config.Verification.ResetTTL)
	if err != nil {
		e.warn("goIdentity: reset token issue failed for user %q: %v", user.ID, err)
		return ErrInternalFailure
	}

	e.record(ctx, events.Entry{
		UserID:      user.ID,
		Type:        events.EventPasswordResetRequested,
		Description: "Password reset requested",
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		Succeeded:   true,
	})

	msg, rerr := notify.PasswordResetEmail(user.DisplayName, tokenLink(e.config.Verification.ResetURL, token), e.config.Verification.ResetTTL)
	e.sendAsync(user.Email, msg, rerr)
	return nil
}

// ResetPassword redeems a reset token and sets newPassword. On success the security stamp
// rotates, any lockout is cleared and every refresh token is revoked. The change notification
// is best effort: a failed send is logged and the reset still stands.
//
// The token is checked without being spent, then spent right before the account is updated.
// If an update fails the token is put back for its remaining lifetime so the same link can be
// retried.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string, meta RequestMeta) error {
	if e == nil || e.singleUse == nil {
		return ErrEngineNotReady
	}
	if len(newPassword) < e.hasher.MinLength() {
		return ErrPasswordPolicy
	}

	userID, remaining, err := e.peekSingleUse(ctx, stores.PurposePasswordReset, token)
	if err != nil {
		return e.resetTokenErr(err)
	}

	user, err := e.credentials.FindByID(ctx, userID)
	if err != nil {
		if isUserNotFound(err) {
			e.metricInc(MetricPasswordResetFailure)
			return ErrResetTokenInvalid
		}
		e.warn("goIdentity: reset user lookup failed: %v", err)
		return ErrInternalFailure
	}
	if !user.IsActive || user.IsDeleted {
		e.metricInc(MetricPasswordResetFailure)
		return ErrResetTokenInvalid
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) {
			return ErrPasswordPolicy
		}
		e.warn("goIdentity: password hash failed during reset: %v", err)
		return ErrInternalFailure
	}

	// Only one of several concurrent redemptions gets past this point.
	owner, err := e.consumeSingleUse(ctx, stores.PurposePasswordReset, token)
	if err != nil {
		return e.resetTokenErr(err)
	}
	if owner != user.ID {
		e.metricInc(MetricPasswordResetFailure)
		return ErrResetTokenInvalid
	}

	now := e.now()
	steps := []func() error{
		func() error { return e.credentials.UpdatePasswordHash(ctx, user.ID, hash) },
		func() error { return e.credentials.UpdateSecurityStamp(ctx, user.ID, uuid.NewString()) },
		func() error {
			_, err := e.credentials.UpdateLockout(ctx, user.ID, nil, "", now)
			return err
		},
		func() error { return e.credentials.ResetFailedAttempts(ctx, user.ID) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			e.warn("goIdentity: password reset update failed for user %q: %v", user.ID, err)
			if rerr := e.singleUse.Issue(ctx, stores.PurposePasswordReset, internal.HashToken(token), user.ID, remaining); rerr != nil {
				e.warn("goIdentity: reset token restore failed for user %q: %v", user.ID, rerr)
			}
			return ErrInternalFailure
		}
	}

	revoked, err := e.ledger.RevokeAllForUser(ctx, user.ID, meta.IP, reasonPasswordReset)
	if err != nil {
		e.warn("goIdentity: session revocation after password reset failed for user %q: %v", user.ID, err)
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.record(ctx, events.Entry{
		UserID:      user.ID,
		Type:        events.EventPasswordReset,
		Description: "Password reset completed",
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		Data:        map[string]string{"revoked_sessions": strconv.Itoa(revoked)},
		Succeeded:   true,
	})

	msg, rerr := notify.PasswordChangedEmail(user.DisplayName, meta.IP, now)
	e.sendAsync(user.Email, msg, rerr)
	return nil
}

func (e *Engine) resetTokenErr(err error) error {
	if errors.Is(err, stores.ErrTokenNotFound) {
		e.metricInc(MetricPasswordResetFailure)
		return ErrResetTokenInvalid
	}
	e.warn("goIdentity: reset token lookup failed: %v", err)
	return ErrInternalFailure
}
