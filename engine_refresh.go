package goIdentity

import (
	"context"
	"strconv"
	"strings"

	"github.com/MrEthical07/goIdentity/events"
	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/refresh"
)

// Refresh exchanges a refresh token for a new access token and a rotated refresh token.
//
// An expired token yields FailureSessionExpired. Unknown, revoked or replayed tokens yield
// FailureTokenRevoked; replaying a rotated token also revokes every active descendant in its
// chain, so the legitimate holder must sign in again.
func (e *Engine) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*AuthResult, error) {
	if e == nil || e.ledger == nil {
		return nil, ErrEngineNotReady
	}
	res := flows.RunRefresh(ctx, refreshToken, flows.Meta(meta), flows.RefreshDeps{
		Rotate:       e.ledger.Refresh,
		FindUserByID: e.findUserByID,
		IssueAccess:  e.issueAccess,
		Record:       e.record,
		MetricInc:    e.metricFlow,
		Metrics: flows.RefreshMetrics{
			RefreshSuccess: int(MetricRefreshSuccess),
			RefreshFailure: int(MetricRefreshFailure),
			ReplayDetected: int(MetricRefreshReplayDetected),
			SessionExpired: int(MetricRefreshSessionExpired),
		},
	})
	if res.Failure != flows.FailureNone {
		kind := failureKind(res.Failure)
		if kind == FailureInternal && res.Err != nil {
			e.warn("goIdentity: refresh failed internally: %v", res.Err)
		}
		return &AuthResult{Status: StatusFailed, Failure: kind}, kind.Err()
	}
	return &AuthResult{
		Status:           StatusSuccess,
		AccessToken:      res.Tokens.AccessToken,
		AccessExpiresAt:  res.Tokens.AccessExpiresAt,
		RefreshToken:     res.Tokens.RefreshToken,
		RefreshExpiresAt: res.Tokens.RefreshExpiresAt,
		User:             toUserInfo(res.User),
	}, nil
}

// RevokeRefreshToken revokes a refresh token owned by userID. Unknown, foreign or already
// inactive tokens return false without error.
func (e *Engine) RevokeRefreshToken(ctx context.Context, userID, refreshToken string, meta RequestMeta, reason string) (bool, error) {
	if e == nil || e.ledger == nil {
		return false, ErrEngineNotReady
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, ErrInvalidRequest
	}
	revoked, err := e.ledger.Revoke(ctx, refreshToken, userID, meta.IP, meta.UserAgent, reason)
	if err != nil {
		e.warn("goIdentity: refresh token revoke failed: %v", err)
		return false, ErrInternalFailure
	}
	if revoked {
		e.metricInc(MetricTokenRevoked)
	}
	return revoked, nil
}

// RevokeAllRefreshTokens signs userID out of every session and returns how many tokens were
// active.
func (e *Engine) RevokeAllRefreshTokens(ctx context.Context, userID string, meta RequestMeta, reason string) (int, error) {
	if e == nil || e.ledger == nil {
		return 0, ErrEngineNotReady
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrInvalidRequest
	}
	if reason == "" {
		reason = refresh.ReasonLogoutAll
	}
	n, err := e.ledger.RevokeAllForUser(ctx, userID, meta.IP, reason)
	if err != nil {
		e.warn("goIdentity: revoke-all failed for user %q: %v", userID, err)
		return n, ErrInternalFailure
	}
	e.metricInc(MetricLogoutAll)
	e.record(ctx, events.Entry{
		UserID:      userID,
		Type:        events.EventSessionsRevoked,
		Description: "All refresh tokens revoked",
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		Data: map[string]string{
			"reason":  reason,
			"revoked": strconv.Itoa(n),
		},
		Succeeded: true,
	})
	return n, nil
}
