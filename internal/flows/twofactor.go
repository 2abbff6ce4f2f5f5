package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/events"
)

// TwoFactorSetupRecord is the flow-local form of a freshly generated secret.
type TwoFactorSetupRecord struct {
	Secret          string
	DisplaySecret   string
	ProvisioningURI string
}

// TwoFactorMetrics carries metric IDs needed by two-factor management.
type TwoFactorMetrics struct {
	SetupStarted int
	Enabled      int
	Disabled     int
	VerifyFailed int
}

// TwoFactorErrors carries host sentinels returned by two-factor management.
type TwoFactorErrors struct {
	UserNotFound   error
	AlreadyEnabled error
	NotInitiated   error
	InvalidCode    error
}

// TwoFactorDeps captures two-factor management dependencies.
type TwoFactorDeps struct {
	Now func() time.Time

	FindUserByID func(context.Context, string) (UserRecord, error)
	GetSecret    func(context.Context, string) (string, error)
	SetSecret    func(context.Context, string, string) error
	SetEnabled   func(context.Context, string, bool) error
	Generate     func(account string) (*TwoFactorSetupRecord, error)
	MatchCode    func(secret, code string, at time.Time) (step int64, ok bool, err error)

	// AcceptStep records a matched time step and refuses one already used. Nil disables the
	// guard.
	AcceptStep func(ctx context.Context, userID string, step int64) (bool, error)

	// CheckAttempts fails once the user spent the budget of wrong codes.
	CheckAttempts       func(context.Context, string) error
	RecordFailedAttempt func(context.Context, string) error
	ResetAttempts       func(context.Context, string) error

	Record    Recorder
	MetricInc func(int)

	Metrics TwoFactorMetrics
	Errors  TwoFactorErrors
}

func (d *TwoFactorDeps) defaults() error {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Record == nil {
		d.Record = noopRecorder
	}
	if d.MetricInc == nil {
		d.MetricInc = noopMetric
	}
	if d.CheckAttempts == nil {
		d.CheckAttempts = func(context.Context, string) error { return nil }
	}
	if d.RecordFailedAttempt == nil {
		d.RecordFailedAttempt = func(context.Context, string) error { return nil }
	}
	if d.ResetAttempts == nil {
		d.ResetAttempts = func(context.Context, string) error { return nil }
	}
	if d.FindUserByID == nil || d.GetSecret == nil || d.SetSecret == nil || d.SetEnabled == nil || d.MatchCode == nil {
		return errors.New("two-factor flow is not wired")
	}
	return nil
}

// checkCode runs code through the attempt budget and the used-step guard. Only a fresh,
// matching code clears the budget.
func (d *TwoFactorDeps) checkCode(ctx context.Context, userID, secret, code string) (bool, error) {
	if err := d.CheckAttempts(ctx, userID); err != nil {
		return false, err
	}
	step, ok, err := d.MatchCode(secret, code, d.Now())
	if err != nil {
		return false, err
	}
	if ok && d.AcceptStep != nil {
		if ok, err = d.AcceptStep(ctx, userID, step); err != nil {
			return false, err
		}
	}
	if !ok {
		if err := d.RecordFailedAttempt(ctx, userID); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := d.ResetAttempts(ctx, userID); err != nil {
		return false, err
	}
	return true, nil
}

func (d *TwoFactorDeps) activeUser(ctx context.Context, userID string) (UserRecord, error) {
	user, err := d.FindUserByID(ctx, userID)
	if err != nil {
		return UserRecord{}, err
	}
	if !user.CanSignIn() {
		return UserRecord{}, d.Errors.UserNotFound
	}
	return user, nil
}

// RunGenerateSetup stores a new pending secret for userID, replacing any unconfirmed one. It
// refuses while two-factor is already enabled so the active secret is never swapped silently.
func RunGenerateSetup(ctx context.Context, userID string, meta Meta, deps TwoFactorDeps) (*TwoFactorSetupRecord, error) {
	if err := deps.defaults(); err != nil {
		return nil, err
	}
	if deps.Generate == nil {
		return nil, errors.New("two-factor generator is not wired")
	}
	user, err := deps.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, deps.Errors.AlreadyEnabled
	}

	account := user.Email
	if account == "" {
		account = user.Username
	}
	setup, err := deps.Generate(account)
	if err != nil {
		return nil, err
	}
	if err := deps.SetSecret(ctx, user.ID, setup.Secret); err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.SetupStarted)
	deps.Record(ctx, events.Entry{
		UserID:      user.ID,
		Type:        events.EventTwoFactorSetupStarted,
		Description: "Two-factor setup started",
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		Succeeded:   true,
	})
	return setup, nil
}

// RunEnable confirms the pending secret with code. A wrong code leaves the secret in place and
// is charged to the attempt budget. The accepted code's step is spent, so it cannot also
// complete a login.
func RunEnable(ctx context.Context, userID, code string, meta Meta, deps TwoFactorDeps) error {
	if err := deps.defaults(); err != nil {
		return err
	}
	user, err := deps.activeUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.TwoFactorEnabled {
		return deps.Errors.AlreadyEnabled
	}
	secret, err := deps.GetSecret(ctx, user.ID)
	if err != nil {
		return err
	}
	if secret == "" {
		return deps.Errors.NotInitiated
	}

	ok, err := deps.checkCode(ctx, user.ID, secret, code)
	if err != nil {
		return err
	}
	if !ok {
		deps.MetricInc(deps.Metrics.VerifyFailed)
		deps.Record(ctx, events.Entry{
			UserID:      user.ID,
			Type:        events.EventTwoFactorFailed,
			Description: "Invalid code while enabling two-factor",
			IP:          meta.IP,
			UserAgent:   meta.UserAgent,
		})
		return deps.Errors.InvalidCode
	}

	if err := deps.SetEnabled(ctx, user.ID, true); err != nil {
		return err
	}
	deps.MetricInc(deps.Metrics.Enabled)
	deps.Record(ctx, events.Entry{
		UserID:      user.ID,
		Type:        events.EventTwoFactorEnabled,
		Description: "Two-factor authentication enabled",
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		Succeeded:   true,
	})
	return nil
}

// RunDisable clears the secret and the enabled flag. Disabling an account without two-factor
// succeeds without recording an event.
func RunDisable(ctx context.Context, userID string, meta Meta, deps TwoFactorDeps) error {
	if err := deps.defaults(); err != nil {
		return err
	}
	user, err := deps.activeUser(ctx, userID)
	if err != nil {
		return err
	}
	secret, err := deps.GetSecret(ctx, user.ID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled && secret == "" {
		return nil
	}

	if err := deps.SetEnabled(ctx, user.ID, false); err != nil {
		return err
	}
	if err := deps.SetSecret(ctx, user.ID, ""); err != nil {
		return err
	}
	deps.MetricInc(deps.Metrics.Disabled)
	deps.Record(ctx, events.Entry{
		UserID:      user.ID,
		Type:        events.EventTwoFactorDisabled,
		Description: "Two-factor authentication disabled",
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		Succeeded:   true,
	})
	return nil
}

// RunVerify checks code against an enabled secret. Wrong codes are charged to the attempt
// budget and a code is accepted at most once.
func RunVerify(ctx context.Context, userID, code string, deps TwoFactorDeps) (bool, error) {
	if err := deps.defaults(); err != nil {
		return false, err
	}
	user, err := deps.activeUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if !user.TwoFactorEnabled {
		return false, nil
	}
	secret, err := deps.GetSecret(ctx, user.ID)
	if err != nil {
		return false, err
	}
	if secret == "" {
		return false, nil
	}
	ok, err := deps.checkCode(ctx, user.ID, secret, code)
	if err != nil {
		return false, err
	}
	if !ok {
		deps.MetricInc(deps.Metrics.VerifyFailed)
	}
	return ok, nil
}
