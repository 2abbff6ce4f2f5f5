package goIdentity

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goIdentity/events"
	"github.com/MrEthical07/goIdentity/internal"
	internalaudit "github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/internal/stores"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/refresh"
	"github.com/MrEthical07/goIdentity/totp"
)

// Engine is the identity core. Build one with New().…Build().
type Engine struct {
	config      Config
	clock       Clock
	random      io.Reader
	credentials CredentialStore
	notifier    NotificationSender
	hasher      *password.Hasher
	dummyHash   string
	jwtManager  *jwt.Manager
	totp        *totp.Manager
	recorder    *events.Recorder
	detector    *events.Detector
	ledger      *refresh.Ledger
	challenges  *stores.TwoFactorChallengeStore
	totpSteps   *stores.TwoFactorStepStore
	totpTries   *limiters.AttemptLimiter
	singleUse   *stores.SingleUseStore
	signups     *limiters.RequestLimiter
	resets      *limiters.RequestLimiter
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
	warn        func(string, ...any)

	background sync.WaitGroup
}

// Close waits for in-flight notifications and drains the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.background.Wait()
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditStats returns how many streamed events were delivered, dropped under backpressure, or
// lost to a panicking sink.
func (e *Engine) AuditStats() AuditStats {
	if e == nil {
		return AuditStats{}
	}
	return e.audit.Stats()
}

// AuditDropped returns how many streamed events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	return e.AuditStats().Dropped
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricFlow(id int) {
	e.metricInc(MetricID(id))
}

func (e *Engine) now() time.Time {
	return e.clock.Now()
}

func (e *Engine) record(ctx context.Context, entry events.Entry) events.SecurityEvent {
	return e.recorder.Log(ctx, entry)
}

func normalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func toFlowUser(u *User) flows.UserRecord {
	return flows.UserRecord{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		DisplayName:      u.DisplayName,
		PasswordHash:     u.PasswordHash,
		Roles:            u.Roles,
		IsActive:         u.IsActive,
		IsDeleted:        u.IsDeleted,
		EmailVerified:    u.EmailVerified,
		FailedAttempts:   u.FailedAttempts,
		LockoutEnd:       u.LockoutEnd,
		TwoFactorEnabled: u.TwoFactorEnabled,
	}
}

func toUserInfo(u flows.UserRecord) *UserInfo {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return &UserInfo{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Roles:       roles,
	}
}

func (e *Engine) findUser(ctx context.Context, identifier string) (flows.UserRecord, error) {
	u, err := e.credentials.FindByNameOrEmail(ctx, normalizeIdentifier(identifier))
	if err != nil {
		return flows.UserRecord{}, err
	}
	return toFlowUser(u), nil
}

func (e *Engine) findUserByID(ctx context.Context, userID string) (flows.UserRecord, error) {
	u, err := e.credentials.FindByID(ctx, strings.TrimSpace(userID))
	if err != nil {
		return flows.UserRecord{}, err
	}
	return toFlowUser(u), nil
}

func (e *Engine) issueAccess(u flows.UserRecord) (string, time.Time, error) {
	token, claims, err := e.jwtManager.CreateAccess(jwt.Subject{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		Roles:       u.Roles,
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

func (e *Engine) issueTokens(ctx context.Context, u flows.UserRecord, meta flows.Meta) (*flows.IssuedTokens, error) {
	access, accessExpires, err := e.issueAccess(u)
	if err != nil {
		return nil, err
	}
	tok, err := e.ledger.Create(ctx, u.ID, meta.IP)
	if err != nil {
		return nil, err
	}
	return &flows.IssuedTokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     tok.Value,
		RefreshExpiresAt: tok.ExpiresAt,
		RefreshTokenID:   tok.ID,
	}, nil
}

// acceptStep is nil when replay protection is off.
func (e *Engine) acceptStep() func(context.Context, string, int64) (bool, error) {
	if e.totpSteps == nil {
		return nil
	}
	return e.totpSteps.Advance
}

func (e *Engine) loginDeps() flows.LoginDeps {
	cfg := e.config
	return flows.LoginDeps{
		LockoutThreshold:     cfg.Lockout.Threshold,
		LockoutDuration:      cfg.Lockout.Duration,
		LockoutWindow:        cfg.Lockout.Window,
		RequireVerifiedEmail: cfg.Verification.RequireVerifiedEmail,
		UpgradeHashOnLogin:   cfg.Password.UpgradeOnLogin,
		ChallengeTTL:         cfg.TOTP.ChallengeTTL,
		ChallengeMaxAttempts: cfg.TOTP.ChallengeMaxAttempts,

		Now: e.now,

		FindUser:                e.findUser,
		FindUserByID:            e.findUserByID,
		IncrementFailedAttempts: e.credentials.IncrementFailedAttempts,
		ResetFailedAttempts:     e.credentials.ResetFailedAttempts,
		UpdateLockout:           e.credentials.UpdateLockout,
		UpdatePasswordHash:      e.credentials.UpdatePasswordHash,
		GetTwoFactorSecret:      e.credentials.GetTwoFactorSecret,

		VerifyPassword: e.hasher.Verify,
		DummyVerify: func(pw string) {
			_, _ = e.hasher.Verify(pw, e.dummyHash)
		},
		NeedsUpgrade: e.hasher.NeedsUpgrade,
		HashPassword: e.hasher.Hash,
		MatchCode:    e.totp.Match,
		AcceptStep:   e.acceptStep(),

		NewChallenge: func() (string, error) {
			return internal.NewToken(e.random, internal.ChallengeBytes)
		},
		HashChallenge: func(v string) (string, bool) {
			if !internal.ValidTokenShape(v, internal.ChallengeBytes) {
				return "", false
			}
			return internal.HashToken(v), true
		},
		SaveChallenge: func(ctx context.Context, hash string, r *flows.TwoFactorChallengeRecord, ttl time.Duration) error {
			return e.challenges.Save(ctx, hash, &stores.TwoFactorChallenge{
				UserID:    r.UserID,
				IP:        r.IP,
				ExpiresAt: r.ExpiresAt,
				Attempts:  r.Attempts,
			}, ttl)
		},
		GetChallenge: func(ctx context.Context, hash string) (*flows.TwoFactorChallengeRecord, error) {
			r, err := e.challenges.Get(ctx, hash)
			if err != nil {
				return nil, err
			}
			return &flows.TwoFactorChallengeRecord{
				UserID:    r.UserID,
				IP:        r.IP,
				ExpiresAt: r.ExpiresAt,
				Attempts:  r.Attempts,
			}, nil
		},
		DeleteChallenge:        e.challenges.Delete,
		RecordChallengeFailure: e.challenges.RecordFailure,

		IssueTokens: e.issueTokens,
		Evaluate:    e.detector.Evaluate,
		Alert:       e.alertAsync,

		Record:    e.record,
		MetricInc: e.metricFlow,
		Warn:      e.warn,

		Metrics: flows.LoginMetrics{
			LoginSuccess:        int(MetricLoginSuccess),
			LoginFailure:        int(MetricLoginFailure),
			LockedOut:           int(MetricAccountLockedOut),
			LockedRejected:      int(MetricLoginLockedRejected),
			TwoFactorRequired:   int(MetricTwoFactorRequired),
			TwoFactorSuccess:    int(MetricTwoFactorLoginSuccess),
			TwoFactorFailure:    int(MetricTwoFactorLoginFailure),
			SuspiciousDetected:  int(MetricSuspiciousActivity),
			NewDeviceDetected:   int(MetricNewDeviceLogin),
			PasswordHashUpgrade: int(MetricPasswordHashUpgraded),
		},
		Errors: flows.LoginErrors{
			UserNotFound:      ErrUserNotFound,
			ChallengeNotFound: stores.ErrChallengeNotFound,
			ChallengeExpired:  stores.ErrChallengeExpired,
		},
	}
}

func (e *Engine) loginResult(res *flows.LoginResult) (*AuthResult, error) {
	if res.Failure != flows.FailureNone {
		kind := failureKind(res.Failure)
		if kind == FailureInternal && res.Err != nil {
			e.warn("goIdentity: login failed internally: %v", res.Err)
		}
		return &AuthResult{Status: StatusFailed, Failure: kind}, kind.Err()
	}
	if res.RequiresTwoFactor {
		return &AuthResult{
			Status:             StatusRequiresTwoFactor,
			TwoFactorChallenge: res.Challenge,
			TwoFactorExpiresAt: res.ChallengeExpires,
		}, nil
	}
	return &AuthResult{
		Status:           StatusSuccess,
		AccessToken:      res.Tokens.AccessToken,
		AccessExpiresAt:  res.Tokens.AccessExpiresAt,
		RefreshToken:     res.Tokens.RefreshToken,
		RefreshExpiresAt: res.Tokens.RefreshExpiresAt,
		User:             toUserInfo(res.User),
		Suspicious:       res.Assessment.Suspicious,
	}, nil
}

// Authenticate performs a password login for a username or email address.
//
// Unknown users and wrong passwords produce the same FailureInvalidCredentials result. A
// locked account yields FailureAccountLocked. When two-factor is enabled no tokens are issued;
// the result carries a TwoFactorChallenge for CompleteTwoFactorLogin.
func (e *Engine) Authenticate(ctx context.Context, identifier, password string, meta RequestMeta) (*AuthResult, error) {
	if e == nil || e.credentials == nil {
		return nil, ErrEngineNotReady
	}
	if strings.TrimSpace(identifier) == "" || password == "" {
		e.metricInc(MetricLoginFailure)
		return &AuthResult{Status: StatusFailed, Failure: FailureInvalidCredentials}, ErrInvalidCredentials
	}
	res := flows.RunAuthenticate(ctx, identifier, password, flows.Meta(meta), e.loginDeps())
	return e.loginResult(res)
}

// CompleteTwoFactorLogin exchanges a login challenge and a TOTP code for tokens. A wrong code
// counts toward lockout like a wrong password.
func (e *Engine) CompleteTwoFactorLogin(ctx context.Context, challenge, code string, meta RequestMeta) (*AuthResult, error) {
	if e == nil || e.credentials == nil {
		return nil, ErrEngineNotReady
	}
	res := flows.RunCompleteTwoFactorLogin(ctx, challenge, code, flows.Meta(meta), e.loginDeps())
	return e.loginResult(res)
}

// ValidateAccessToken verifies signature, issuer, audience and expiry with zero leeway.
func (e *Engine) ValidateAccessToken(tokenStr string) (*AccessClaims, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}
	claims, err := e.jwtManager.ParseAccess(tokenStr)
	if !start.IsZero() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func failureKind(f flows.Failure) FailureKind {
	switch f {
	case flows.FailureNone:
		return FailureNone
	case flows.FailureInvalidCredentials:
		return FailureInvalidCredentials
	case flows.FailureAccountLocked:
		return FailureAccountLocked
	case flows.FailureEmailUnverified:
		return FailureEmailUnverified
	case flows.FailureSessionExpired:
		return FailureSessionExpired
	case flows.FailureTokenRevoked:
		return FailureTokenRevoked
	case flows.FailureInvalidTwoFactorCode:
		return FailureInvalidTwoFactorCode
	case flows.FailureTwoFactorChallengeInvalid:
		return FailureTwoFactorChallengeInvalid
	default:
		return FailureInternal
	}
}

// validateSubject gates refresh-token rotation on the owner still being able to sign in.
func (e *Engine) validateSubject(ctx context.Context, userID string) error {
	u, err := e.credentials.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return refresh.ErrSubjectInvalid
		}
		return err
	}
	if !u.IsActive || u.IsDeleted {
		return refresh.ErrSubjectInvalid
	}
	return nil
}
