package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/events"
	"github.com/MrEthical07/goIdentity/refresh"
)

// RefreshMetrics carries metric IDs needed by the refresh flow.
type RefreshMetrics struct {
	RefreshSuccess int
	RefreshFailure int
	ReplayDetected int
	SessionExpired int
}

// RefreshDeps captures refresh dependencies.
type RefreshDeps struct {
	Rotate       func(ctx context.Context, value, ip, userAgent string) (*refresh.Rotation, error)
	FindUserByID func(context.Context, string) (UserRecord, error)
	IssueAccess  func(UserRecord) (string, time.Time, error)

	Record    Recorder
	MetricInc func(int)

	Metrics RefreshMetrics
}

// RefreshResult is the outcome of exchanging a refresh token.
type RefreshResult struct {
	Failure Failure
	User    UserRecord
	Tokens  *IssuedTokens
	Err     error
}

// RunRefresh rotates the presented refresh token and mints a new access token for its owner.
// Expired tokens report FailureSessionExpired. Unknown, revoked and replayed tokens all report
// FailureTokenRevoked; the ledger has already revoked the affected chain when a replay is seen.
func RunRefresh(ctx context.Context, value string, meta Meta, deps RefreshDeps) *RefreshResult {
	if deps.Record == nil {
		deps.Record = noopRecorder
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.Rotate == nil || deps.FindUserByID == nil || deps.IssueAccess == nil {
		return &RefreshResult{Failure: FailureInternal, Err: errors.New("refresh flow is not wired")}
	}

	rotation, err := deps.Rotate(ctx, value, meta.IP, meta.UserAgent)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		switch {
		case errors.Is(err, refresh.ErrExpired):
			deps.MetricInc(deps.Metrics.SessionExpired)
			return &RefreshResult{Failure: FailureSessionExpired}
		case errors.Is(err, refresh.ErrReplayDetected):
			deps.MetricInc(deps.Metrics.ReplayDetected)
			return &RefreshResult{Failure: FailureTokenRevoked}
		case errors.Is(err, refresh.ErrNotFound), errors.Is(err, refresh.ErrRevoked), errors.Is(err, refresh.ErrSubjectInvalid):
			return &RefreshResult{Failure: FailureTokenRevoked}
		default:
			return &RefreshResult{Failure: FailureInternal, Err: err}
		}
	}

	user, err := deps.FindUserByID(ctx, rotation.Next.UserID)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return &RefreshResult{Failure: FailureInternal, Err: err}
	}

	access, accessExpires, err := deps.IssueAccess(user)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return &RefreshResult{Failure: FailureInternal, Err: err}
	}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	deps.Record(ctx, events.Entry{
		UserID:      user.ID,
		Type:        events.EventTokenRefreshed,
		Description: "Refresh token rotated",
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		Data: map[string]string{
			"previous_token_id": rotation.Previous.ID,
			"token_id":          rotation.Next.ID,
		},
		Succeeded: true,
	})

	return &RefreshResult{
		User: user,
		Tokens: &IssuedTokens{
			AccessToken:      access,
			AccessExpiresAt:  accessExpires,
			RefreshToken:     rotation.Next.Value,
			RefreshExpiresAt: rotation.Next.ExpiresAt,
			RefreshTokenID:   rotation.Next.ID,
		},
	}
}
