package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/events"
	"github.com/MrEthical07/goIdentity/refresh"
)

func TestRunRefreshMapsLedgerErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		want    Failure
		replays int
	}{
		{"unknown", refresh.ErrNotFound, FailureTokenRevoked, 0},
		{"expired", refresh.ErrExpired, FailureSessionExpired, 0},
		{"replay", refresh.ErrReplayDetected, FailureTokenRevoked, 1},
		{"killed chain", refresh.ErrRevoked, FailureTokenRevoked, 0},
		{"subject", refresh.ErrSubjectInvalid, FailureTokenRevoked, 0},
		{"backend", errors.New("redis down"), FailureInternal, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			replays := 0
			deps := RefreshDeps{
				Rotate: func(context.Context, string, string, string) (*refresh.Rotation, error) {
					return nil, tc.err
				},
				FindUserByID: func(context.Context, string) (UserRecord, error) { return UserRecord{}, nil },
				IssueAccess:  func(UserRecord) (string, time.Time, error) { return "", time.Time{}, nil },
				MetricInc: func(id int) {
					if id == 3 {
						replays++
					}
				},
				Metrics: RefreshMetrics{RefreshSuccess: 1, RefreshFailure: 2, ReplayDetected: 3, SessionExpired: 4},
			}
			res := RunRefresh(context.Background(), "value", meta, deps)
			if res.Failure != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, res.Failure)
			}
			if res.Tokens != nil {
				t.Fatal("failed refresh must not carry tokens")
			}
			if replays != tc.replays {
				t.Fatalf("expected %d replay metric increments, got %d", tc.replays, replays)
			}
		})
	}
}

func TestRunRefreshIssuesNewPair(t *testing.T) {
	expires := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	rec := &recorded{}
	deps := RefreshDeps{
		Rotate: func(context.Context, string, string, string) (*refresh.Rotation, error) {
			return &refresh.Rotation{
				Previous: &refresh.Token{ID: "t1", UserID: "u-alice"},
				Next:     &refresh.Token{ID: "t2", UserID: "u-alice", Value: "next-value", ExpiresAt: expires},
			}, nil
		},
		FindUserByID: func(_ context.Context, id string) (UserRecord, error) {
			return UserRecord{ID: id, DisplayName: "Alice"}, nil
		},
		IssueAccess: func(u UserRecord) (string, time.Time, error) {
			return "access-" + u.ID, expires, nil
		},
		Record: rec.record,
	}

	res := RunRefresh(context.Background(), "value", meta, deps)
	if res.Failure != FailureNone {
		t.Fatalf("expected success, got %v (%v)", res.Failure, res.Err)
	}
	if res.Tokens.RefreshToken != "next-value" || res.Tokens.AccessToken != "access-u-alice" {
		t.Fatalf("unexpected tokens %+v", res.Tokens)
	}
	if rec.count(events.EventTokenRefreshed) != 1 {
		t.Fatal("expected TokenRefreshed event")
	}
}
