package refresh

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no token matches the presented value or id.
	ErrNotFound = errors.New("refresh token not found")
	// ErrExpired is returned when the presented token is past its expiry.
	ErrExpired = errors.New("refresh token expired")
	// ErrReplayDetected is returned when a rotated or revoked token is presented again.
	ErrReplayDetected = errors.New("refresh token reuse detected")
	// ErrRevoked is returned for a token already revoked by an earlier replay. It is not
	// reported as a new replay.
	ErrRevoked = errors.New("refresh token revoked")
	// ErrRotationConflict is returned by Store.Rotate when the parent was rotated or revoked
	// between lookup and rotation.
	ErrRotationConflict = errors.New("refresh token rotation conflict")
	// ErrSubjectInvalid is returned when the token owner can no longer hold a session.
	ErrSubjectInvalid = errors.New("refresh token subject invalid")
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("refresh token store unavailable")
	// ErrCorruptRecord is returned for stored records that cannot be decoded.
	ErrCorruptRecord = errors.New("refresh token record corrupt")
)

// State is the lifecycle position of a token at a given instant.
type State int

const (
	StateActive State = iota
	StateRotated
	StateRevoked
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateRotated:
		return "rotated"
	case StateRevoked:
		return "revoked"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Revocation reasons written by the ledger.
const (
	ReasonRotated        = "rotated"
	ReasonLogout         = "logout"
	ReasonReplayDetected = "replay detected"
	ReasonSubjectInvalid = "subject invalid"
	ReasonLogoutAll      = "logout all sessions"
)

// Token is one ledger record. Value is only populated on the token returned from Create or
// Rotate; stored records carry just ValueHash.
type Token struct {
	ID          string
	UserID      string
	Value       string
	ValueHash   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	CreatedByIP string

	RevokedAt     *time.Time
	RevokedByIP   string
	RevokedReason string
	ReplacedBy    string
}

// IsActive reports whether the token is unrevoked and unexpired at now.
func (t *Token) IsActive(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// State classifies the token at now. Revocation takes precedence over expiry.
func (t *Token) State(now time.Time) State {
	switch {
	case t.RevokedAt != nil && t.ReplacedBy != "":
		return StateRotated
	case t.RevokedAt != nil:
		return StateRevoked
	case !now.Before(t.ExpiresAt):
		return StateExpired
	default:
		return StateActive
	}
}
