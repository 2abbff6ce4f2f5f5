package goIdentity

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/totp"
)

func (e *Engine) twoFactorDeps() flows.TwoFactorDeps {
	return flows.TwoFactorDeps{
		Now:          e.now,
		FindUserByID: e.findUserByID,
		GetSecret:    e.credentials.GetTwoFactorSecret,
		SetSecret:    e.credentials.SetTwoFactorSecret,
		SetEnabled:   e.credentials.SetTwoFactorEnabled,
		Generate: func(account string) (*flows.TwoFactorSetupRecord, error) {
			setup, err := e.totp.GenerateSetup(account)
			if err != nil {
				return nil, err
			}
			return &flows.TwoFactorSetupRecord{
				Secret:          setup.Secret,
				DisplaySecret:   setup.DisplaySecret,
				ProvisioningURI: setup.ProvisioningURI,
			}, nil
		},
		MatchCode:  e.totp.Match,
		AcceptStep: e.acceptStep(),

		CheckAttempts: func(ctx context.Context, userID string) error {
			if err := e.totpTries.Check(ctx, userID); err != nil {
				if errors.Is(err, limiters.ErrLimited) {
					e.metricInc(MetricRequestThrottled)
					return ErrRateLimited
				}
				return err
			}
			return nil
		},
		RecordFailedAttempt: e.totpTries.RecordFailure,
		ResetAttempts:       e.totpTries.Reset,

		Record:    e.record,
		MetricInc: e.metricFlow,
		Metrics: flows.TwoFactorMetrics{
			SetupStarted: int(MetricTwoFactorSetupStarted),
			Enabled:      int(MetricTwoFactorEnabled),
			Disabled:     int(MetricTwoFactorDisabled),
			VerifyFailed: int(MetricTwoFactorVerifyFailure),
		},
		Errors: flows.TwoFactorErrors{
			UserNotFound:   ErrUserNotFound,
			AlreadyEnabled: ErrTwoFactorAlreadyEnabled,
			NotInitiated:   ErrTwoFactorNotInitiated,
			InvalidCode:    ErrInvalidTwoFactorCode,
		},
	}
}

// twoFactorErr passes known sentinels through and collapses everything else.
func (e *Engine) twoFactorErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrTwoFactorAlreadyEnabled),
		errors.Is(err, ErrTwoFactorNotInitiated),
		errors.Is(err, ErrInvalidTwoFactorCode),
		errors.Is(err, ErrRateLimited):
		return err
	default:
		e.warn("goIdentity: two-factor %s failed: %v", op, err)
		return ErrInternalFailure
	}
}

// GenerateTwoFactorSetup stores a new pending secret, replacing any unconfirmed one, and
// returns it with a grouped display form and an otpauth:// provisioning URI.
func (e *Engine) GenerateTwoFactorSetup(ctx context.Context, userID string, meta RequestMeta) (*TwoFactorSetup, error) {
	if e == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}
	setup, err := flows.RunGenerateSetup(ctx, userID, flows.Meta(meta), e.twoFactorDeps())
	if err != nil {
		return nil, e.twoFactorErr("setup", err)
	}
	display := setup.DisplaySecret
	if display == "" {
		display = totp.FormatSecret(setup.Secret)
	}
	return &TwoFactorSetup{
		Secret:          setup.Secret,
		DisplaySecret:   display,
		ProvisioningURI: setup.ProvisioningURI,
	}, nil
}

// EnableTwoFactor confirms the pending secret. A wrong code returns ErrInvalidTwoFactorCode
// and keeps the secret for another try, within the same attempt budget as VerifyTwoFactor.
func (e *Engine) EnableTwoFactor(ctx context.Context, userID, code string, meta RequestMeta) error {
	if e == nil || e.totp == nil {
		return ErrEngineNotReady
	}
	return e.twoFactorErr("enable", flows.RunEnable(ctx, userID, code, flows.Meta(meta), e.twoFactorDeps()))
}

// DisableTwoFactor clears the secret and flag. It is idempotent.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID string, meta RequestMeta) error {
	if e == nil || e.totp == nil {
		return ErrEngineNotReady
	}
	return e.twoFactorErr("disable", flows.RunDisable(ctx, userID, flows.Meta(meta), e.twoFactorDeps()))
}

// VerifyTwoFactor checks a code for a user with two-factor enabled, for standalone
// re-authentication. Each code is accepted once, and after TOTP.MaxVerifyFailures wrong codes
// it returns ErrRateLimited until TOTP.VerifyCooldown has passed.
func (e *Engine) VerifyTwoFactor(ctx context.Context, userID, code string) (bool, error) {
	if e == nil || e.totp == nil {
		return false, ErrEngineNotReady
	}
	ok, err := flows.RunVerify(ctx, userID, code, e.twoFactorDeps())
	return ok, e.twoFactorErr("verify", err)
}
