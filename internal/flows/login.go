package flows

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/goIdentity/events"
)

const lockoutReasonFailedLogins = "too many failed login attempts"

// TwoFactorChallengeRecord is the flow-local form of a pending second-factor login.
type TwoFactorChallengeRecord struct {
	UserID    string
	IP        string
	ExpiresAt int64
	Attempts  uint16
}

// LoginMetrics carries metric IDs needed by login flows.
type LoginMetrics struct {
	LoginSuccess        int
	LoginFailure        int
	LockedOut           int
	LockedRejected      int
	TwoFactorRequired   int
	TwoFactorSuccess    int
	TwoFactorFailure    int
	SuspiciousDetected  int
	NewDeviceDetected   int
	PasswordHashUpgrade int
}

// LoginErrors carries host sentinels the login flows match against.
type LoginErrors struct {
	UserNotFound      error
	ChallengeNotFound error
	ChallengeExpired  error
}

// LoginDeps captures login and second-factor completion dependencies.
type LoginDeps struct {
	LockoutThreshold     int
	LockoutDuration      time.Duration
	LockoutWindow        time.Duration
	RequireVerifiedEmail bool
	UpgradeHashOnLogin   bool
	ChallengeTTL         time.Duration
	ChallengeMaxAttempts int

	Now func() time.Time

	FindUser                func(context.Context, string) (UserRecord, error)
	FindUserByID            func(context.Context, string) (UserRecord, error)
	IncrementFailedAttempts func(ctx context.Context, userID string, windowStart, now time.Time) (int, error)
	ResetFailedAttempts     func(context.Context, string) error
	UpdateLockout           func(ctx context.Context, userID string, until *time.Time, reason string, now time.Time) (bool, error)
	UpdatePasswordHash      func(context.Context, string, string) error
	GetTwoFactorSecret      func(context.Context, string) (string, error)

	VerifyPassword func(string, string) (bool, error)
	DummyVerify    func(string)
	NeedsUpgrade   func(string) (bool, error)
	HashPassword   func(string) (string, error)
	MatchCode      func(secret, code string, at time.Time) (step int64, ok bool, err error)
	AcceptStep     func(ctx context.Context, userID string, step int64) (bool, error)

	NewChallenge           func() (string, error)
	HashChallenge          func(string) (string, bool)
	SaveChallenge          func(context.Context, string, *TwoFactorChallengeRecord, time.Duration) error
	GetChallenge           func(context.Context, string) (*TwoFactorChallengeRecord, error)
	DeleteChallenge        func(context.Context, string) (bool, error)
	RecordChallengeFailure func(context.Context, string, int) (bool, error)

	IssueTokens func(context.Context, UserRecord, Meta) (*IssuedTokens, error)
	Evaluate    func(context.Context, events.Activity) events.Assessment
	Alert       func(user UserRecord, kind AlertKind, meta Meta, failedLogins int)

	Record    Recorder
	MetricInc func(int)
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Errors  LoginErrors
}

// LoginResult is the outcome of a login or second-factor completion.
type LoginResult struct {
	Failure           Failure
	User              UserRecord
	RequiresTwoFactor bool
	Challenge         string
	ChallengeExpires  time.Time
	Tokens            *IssuedTokens
	Assessment        events.Assessment
	// Err holds the underlying cause of FailureInternal.
	Err error
}

func (d *LoginDeps) defaults() {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Record == nil {
		d.Record = noopRecorder
	}
	if d.MetricInc == nil {
		d.MetricInc = noopMetric
	}
	if d.Warn == nil {
		d.Warn = noopWarn
	}
	if d.Alert == nil {
		d.Alert = func(UserRecord, AlertKind, Meta, int) {}
	}
	if d.Evaluate == nil {
		d.Evaluate = func(context.Context, events.Activity) events.Assessment { return events.Assessment{} }
	}
	if d.DummyVerify == nil {
		d.DummyVerify = func(string) {}
	}
}

func internalFailure(err error) *LoginResult {
	return &LoginResult{Failure: FailureInternal, Err: err}
}

// RunAuthenticate verifies a password login.
//
// Unknown, inactive and wrong-password attempts all end in FailureInvalidCredentials. The
// threshold-th consecutive failure inside the window locks the account but still reports
// FailureInvalidCredentials; later attempts report FailureAccountLocked until the lock ends.
func RunAuthenticate(ctx context.Context, identifier, password string, meta Meta, deps LoginDeps) *LoginResult {
	deps.defaults()
	if deps.FindUser == nil || deps.VerifyPassword == nil || deps.IssueTokens == nil {
		return internalFailure(errors.New("login flow is not wired"))
	}

	user, err := deps.FindUser(ctx, identifier)
	if err != nil {
		if !errors.Is(err, deps.Errors.UserNotFound) {
			return internalFailure(err)
		}
		deps.DummyVerify(password)
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.Record(ctx, events.Entry{
			Type:        events.EventLoginFailed,
			Description: "Login attempt for unknown account",
			IP:          meta.IP,
			UserAgent:   meta.UserAgent,
			Data:        map[string]string{"reason": "unknown_account"},
		})
		return &LoginResult{Failure: FailureInvalidCredentials}
	}

	if !user.CanSignIn() {
		deps.DummyVerify(password)
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.Record(ctx, events.Entry{
			UserID:      user.ID,
			Type:        events.EventLoginFailed,
			Description: "Login attempt for disabled account",
			IP:          meta.IP,
			UserAgent:   meta.UserAgent,
			Data:        map[string]string{"reason": "account_disabled"},
		})
		return &LoginResult{Failure: FailureInvalidCredentials}
	}

	now := deps.Now()
	if user.LockedAt(now) {
		deps.MetricInc(deps.Metrics.LockedRejected)
		deps.Record(ctx, events.Entry{
			UserID:      user.ID,
			Type:        events.EventLoginFailed,
			Description: "Login attempt while account is locked",
			IP:          meta.IP,
			UserAgent:   meta.UserAgent,
			Data:        map[string]string{"reason": "locked_out"},
		})
		return &LoginResult{Failure: FailureAccountLocked, User: user}
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return internalFailure(err)
	}
	if !ok {
		if err := registerFailure(ctx, user, meta, now, &deps); err != nil {
			return internalFailure(err)
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.Record(ctx, events.Entry{
			UserID:      user.ID,
			Type:        events.EventLoginFailed,
			Description: "Invalid password",
			IP:          meta.IP,
			UserAgent:   meta.UserAgent,
			Data:        map[string]string{"reason": "invalid_password"},
		})
		return &LoginResult{Failure: FailureInvalidCredentials}
	}

	if deps.RequireVerifiedEmail && !user.EmailVerified {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.Record(ctx, events.Entry{
			UserID:      user.ID,
			Type:        events.EventLoginFailed,
			Description: "Login refused until email address is verified",
			IP:          meta.IP,
			UserAgent:   meta.UserAgent,
			Data:        map[string]string{"reason": "email_unverified"},
		})
		return &LoginResult{Failure: FailureEmailUnverified, User: user}
	}

	if user.FailedAttempts > 0 && deps.ResetFailedAttempts != nil {
		if err := deps.ResetFailedAttempts(ctx, user.ID); err != nil {
			return internalFailure(err)
		}
	}

	upgradeHash(password, user, &deps)

	if user.TwoFactorEnabled {
		return startTwoFactor(ctx, user, meta, now, &deps)
	}

	return completeLogin(ctx, user, meta, &deps)
}

// RunCompleteTwoFactorLogin finishes a login that stopped at the second factor. Challenges are
// single use: a correct code consumes it, and too many wrong codes destroy it.
func RunCompleteTwoFactorLogin(ctx context.Context, challenge, code string, meta Meta, deps LoginDeps) *LoginResult {
	deps.defaults()
	if deps.HashChallenge == nil || deps.GetChallenge == nil || deps.DeleteChallenge == nil ||
		deps.FindUserByID == nil || deps.GetTwoFactorSecret == nil || deps.MatchCode == nil ||
		deps.IssueTokens == nil {
		return internalFailure(errors.New("two-factor login flow is not wired"))
	}

	challengeHash, ok := deps.HashChallenge(challenge)
	if !ok {
		return &LoginResult{Failure: FailureTwoFactorChallengeInvalid}
	}

	record, err := deps.GetChallenge(ctx, challengeHash)
	if err != nil {
		if errors.Is(err, deps.Errors.ChallengeNotFound) || errors.Is(err, deps.Errors.ChallengeExpired) {
			return &LoginResult{Failure: FailureTwoFactorChallengeInvalid}
		}
		return internalFailure(err)
	}

	discard := func() {
		if _, err := deps.DeleteChallenge(ctx, challengeHash); err != nil {
			deps.Warn("goIdentity: two-factor challenge delete failed: %v", err)
		}
	}

	user, err := deps.FindUserByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			discard()
			return &LoginResult{Failure: FailureTwoFactorChallengeInvalid}
		}
		return internalFailure(err)
	}
	if !user.CanSignIn() || !user.TwoFactorEnabled {
		discard()
		return &LoginResult{Failure: FailureTwoFactorChallengeInvalid}
	}

	now := deps.Now()
	if user.LockedAt(now) {
		discard()
		deps.MetricInc(deps.Metrics.LockedRejected)
		return &LoginResult{Failure: FailureAccountLocked, User: user}
	}

	secret, err := deps.GetTwoFactorSecret(ctx, user.ID)
	if err != nil {
		return internalFailure(err)
	}
	step, valid, err := deps.MatchCode(secret, code, now)
	if err != nil {
		return internalFailure(err)
	}
	// A code whose step was already spent counts as wrong.
	if valid && deps.AcceptStep != nil {
		if valid, err = deps.AcceptStep(ctx, user.ID, step); err != nil {
			return internalFailure(err)
		}
	}

	if !valid {
		deps.MetricInc(deps.Metrics.TwoFactorFailure)
		deps.Record(ctx, events.Entry{
			UserID:      user.ID,
			Type:        events.EventTwoFactorFailed,
			Description: "Invalid second-factor code during login",
			IP:          meta.IP,
			UserAgent:   meta.UserAgent,
		})
		if deps.RecordChallengeFailure != nil {
			if _, err := deps.RecordChallengeFailure(ctx, challengeHash, deps.ChallengeMaxAttempts); err != nil &&
				!errors.Is(err, deps.Errors.ChallengeNotFound) && !errors.Is(err, deps.Errors.ChallengeExpired) {
				return internalFailure(err)
			}
		}
		if err := registerFailure(ctx, user, meta, now, &deps); err != nil {
			return internalFailure(err)
		}
		return &LoginResult{Failure: FailureInvalidTwoFactorCode, User: user}
	}

	consumed, err := deps.DeleteChallenge(ctx, challengeHash)
	if err != nil {
		return internalFailure(err)
	}
	if !consumed {
		return &LoginResult{Failure: FailureTwoFactorChallengeInvalid}
	}

	if user.FailedAttempts > 0 && deps.ResetFailedAttempts != nil {
		if err := deps.ResetFailedAttempts(ctx, user.ID); err != nil {
			return internalFailure(err)
		}
	}

	deps.MetricInc(deps.Metrics.TwoFactorSuccess)
	deps.Record(ctx, events.Entry{
		UserID:      user.ID,
		Type:        events.EventTwoFactorSucceeded,
		Description: "Second factor accepted",
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		Succeeded:   true,
	})

	return completeLogin(ctx, user, meta, &deps)
}

// registerFailure counts one failed attempt and locks the account when the count reaches the
// threshold. The lock write only succeeds for an account that is not already locked, so
// concurrent failures never extend or reset an active lock.
func registerFailure(ctx context.Context, user UserRecord, meta Meta, now time.Time, deps *LoginDeps) error {
	if deps.IncrementFailedAttempts == nil || deps.LockoutThreshold <= 0 {
		return nil
	}
	count, err := deps.IncrementFailedAttempts(ctx, user.ID, now.Add(-deps.LockoutWindow), now)
	if err != nil {
		return err
	}
	if count < deps.LockoutThreshold || deps.UpdateLockout == nil {
		return nil
	}

	until := now.Add(deps.LockoutDuration)
	locked, err := deps.UpdateLockout(ctx, user.ID, &until, lockoutReasonFailedLogins, now)
	if err != nil {
		return err
	}
	if !locked {
		return nil
	}

	if deps.ResetFailedAttempts != nil {
		if err := deps.ResetFailedAttempts(ctx, user.ID); err != nil {
			deps.Warn("goIdentity: failed-attempt reset after lockout failed for user %q: %v", user.ID, err)
		}
	}
	deps.MetricInc(deps.Metrics.LockedOut)
	deps.Record(ctx, events.Entry{
		UserID:      user.ID,
		Type:        events.EventLockedOut,
		Description: "Account locked after repeated failed logins",
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		Data: map[string]string{
			"failed_attempts": strconv.Itoa(count),
			"duration":        deps.LockoutDuration.String(),
		},
		Succeeded: true,
	})
	deps.Alert(user, AlertLockedOut, meta, count)
	return nil
}

func upgradeHash(password string, user UserRecord, deps *LoginDeps) {
	if !deps.UpgradeHashOnLogin || deps.NeedsUpgrade == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return
	}
	needs, err := deps.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := deps.HashPassword(password)
	if err != nil {
		deps.Warn("goIdentity: password rehash failed for user %q: %v", user.ID, err)
		return
	}
	// Runs after the credential decision; a failed write only delays the upgrade.
	if err := deps.UpdatePasswordHash(context.Background(), user.ID, hash); err != nil {
		deps.Warn("goIdentity: password hash upgrade update failed for user %q: %v", user.ID, err)
		return
	}
	deps.MetricInc(deps.Metrics.PasswordHashUpgrade)
}

func startTwoFactor(ctx context.Context, user UserRecord, meta Meta, now time.Time, deps *LoginDeps) *LoginResult {
	if deps.NewChallenge == nil || deps.HashChallenge == nil || deps.SaveChallenge == nil {
		return internalFailure(errors.New("two-factor challenge store is not wired"))
	}
	challenge, err := deps.NewChallenge()
	if err != nil {
		return internalFailure(err)
	}
	challengeHash, _ := deps.HashChallenge(challenge)
	expires := now.Add(deps.ChallengeTTL)
	record := &TwoFactorChallengeRecord{
		UserID:    user.ID,
		IP:        meta.IP,
		ExpiresAt: expires.Unix(),
	}
	if err := deps.SaveChallenge(ctx, challengeHash, record, deps.ChallengeTTL); err != nil {
		return internalFailure(err)
	}

	deps.MetricInc(deps.Metrics.TwoFactorRequired)
	deps.Record(ctx, events.Entry{
		UserID:      user.ID,
		Type:        events.EventTwoFactorRequired,
		Description: "Password accepted, second factor required",
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		Succeeded:   true,
	})

	return &LoginResult{
		User:              user,
		RequiresTwoFactor: true,
		Challenge:         challenge,
		ChallengeExpires:  expires,
	}
}

func completeLogin(ctx context.Context, user UserRecord, meta Meta, deps *LoginDeps) *LoginResult {
	tokens, err := deps.IssueTokens(ctx, user, meta)
	if err != nil {
		return internalFailure(err)
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	recorded := deps.Record(ctx, events.Entry{
		UserID:      user.ID,
		Type:        events.EventLoginSucceeded,
		Description: "Login succeeded",
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		Data:        map[string]string{"refresh_token_id": tokens.RefreshTokenID},
		Succeeded:   true,
	})

	assessment := deps.Evaluate(ctx, events.Activity{
		UserID:      user.ID,
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		SkipEventID: recorded.ID,
	})
	if assessment.RepeatedFailures {
		deps.MetricInc(deps.Metrics.SuspiciousDetected)
		deps.Alert(user, AlertSuspiciousActivity, meta, assessment.FailedLoginsInPast)
	}
	if assessment.NewDevice {
		deps.MetricInc(deps.Metrics.NewDeviceDetected)
		deps.Alert(user, AlertNewDevice, meta, assessment.FailedLoginsInPast)
	}

	return &LoginResult{User: user, Tokens: tokens, Assessment: assessment}
}
