package refresh

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/events"
	"github.com/MrEthical07/goIdentity/internal"
	"github.com/google/uuid"
)

const maxChainLength = 10000

// SubjectValidator reports whether userID may still hold a session. ErrSubjectInvalid revokes
// the presented token; any other error aborts the refresh and leaves the token untouched.
type SubjectValidator interface {
	ValidateSubject(ctx context.Context, userID string) error
}

// SubjectValidatorFunc adapts a function to SubjectValidator.
type SubjectValidatorFunc func(ctx context.Context, userID string) error

func (f SubjectValidatorFunc) ValidateSubject(ctx context.Context, userID string) error {
	return f(ctx, userID)
}

// Config controls token lifetime and injectable sources.
type Config struct {
	// Lifetime is how long a new token stays valid. Default 7 days.
	Lifetime time.Duration
	Now      func() time.Time
	Rand     io.Reader
	NewID    func() string
}

// Rotation is the outcome of a successful Refresh.
type Rotation struct {
	Previous *Token
	Next     *Token
}

// Ledger owns the refresh-token state machine.
type Ledger struct {
	store    Store
	subjects SubjectValidator
	recorder *events.Recorder
	cfg      Config
}

// NewLedger wires a Ledger. subjects and recorder are required.
func NewLedger(store Store, subjects SubjectValidator, recorder *events.Recorder, cfg Config) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("refresh: store is required")
	}
	if subjects == nil {
		return nil, errors.New("refresh: subject validator is required")
	}
	if recorder == nil {
		return nil, errors.New("refresh: event recorder is required")
	}
	if cfg.Lifetime == 0 {
		cfg.Lifetime = 7 * 24 * time.Hour
	}
	if cfg.Lifetime < time.Minute {
		return nil, errors.New("refresh: lifetime must be at least one minute")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Ledger{store: store, subjects: subjects, recorder: recorder, cfg: cfg}, nil
}

// Lifetime returns the configured token lifetime.
func (l *Ledger) Lifetime() time.Duration {
	return l.cfg.Lifetime
}

func (l *Ledger) newToken(userID, ip string, now time.Time) (*Token, error) {
	value, err := internal.NewToken(l.cfg.Rand, internal.TokenBytes)
	if err != nil {
		return nil, err
	}
	return &Token{
		ID:          l.cfg.NewID(),
		UserID:      userID,
		Value:       value,
		ValueHash:   internal.HashToken(value),
		CreatedAt:   now,
		ExpiresAt:   now.Add(l.cfg.Lifetime),
		CreatedByIP: ip,
	}, nil
}

// Create issues the first token of a new chain for userID.
func (l *Ledger) Create(ctx context.Context, userID, ip string) (*Token, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("refresh: user id is required")
	}
	tok, err := l.newToken(userID, ip, l.cfg.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := l.store.Create(ctx, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// Lookup finds the record for a presented token value.
func (l *Ledger) Lookup(ctx context.Context, value string) (*Token, error) {
	if !internal.ValidTokenShape(value, internal.TokenBytes) {
		return nil, ErrNotFound
	}
	return l.store.FindByValueHash(ctx, internal.HashToken(value))
}

// Rotate replaces the Active token old with a new child for the same user.
func (l *Ledger) Rotate(ctx context.Context, old *Token, ip string) (*Token, error) {
	if old == nil {
		return nil, ErrNotFound
	}
	now := l.cfg.Now().UTC()
	next, err := l.newToken(old.UserID, ip, now)
	if err != nil {
		return nil, err
	}
	if err := l.store.Rotate(ctx, old.ID, next, now, ip); err != nil {
		return nil, err
	}
	return next, nil
}

// Refresh exchanges a presented token value for its successor.
//
// Unknown values fail with ErrNotFound and expired ones with ErrExpired, with no side effects.
// A rotated or revoked token, or a rotation that loses a race, revokes every Active descendant,
// records a SuspiciousActivity event and fails with ErrReplayDetected. A token that an earlier
// replay already revoked fails with ErrRevoked and records nothing. An owner that can no
// longer hold a session gets the token revoked and ErrSubjectInvalid.
func (l *Ledger) Refresh(ctx context.Context, value, ip, userAgent string) (*Rotation, error) {
	tok, err := l.Lookup(ctx, value)
	if err != nil {
		return nil, err
	}

	now := l.cfg.Now().UTC()
	switch tok.State(now) {
	case StateExpired:
		return nil, ErrExpired
	case StateRevoked:
		if tok.RevokedReason == ReasonReplayDetected {
			return nil, ErrRevoked
		}
		l.handleReplay(ctx, tok, ip, userAgent, "reuse of inactive refresh token")
		return nil, ErrReplayDetected
	case StateRotated:
		l.handleReplay(ctx, tok, ip, userAgent, "reuse of inactive refresh token")
		return nil, ErrReplayDetected
	}

	if err := l.subjects.ValidateSubject(ctx, tok.UserID); err != nil {
		if !errors.Is(err, ErrSubjectInvalid) {
			return nil, err
		}
		if _, _, rerr := l.store.Revoke(ctx, tok.ID, now, ip, ReasonSubjectInvalid); rerr != nil && !errors.Is(rerr, ErrNotFound) {
			return nil, rerr
		}
		return nil, ErrSubjectInvalid
	}

	next, err := l.Rotate(ctx, tok, ip)
	switch {
	case err == nil:
		return &Rotation{Previous: tok, Next: next}, nil
	case errors.Is(err, ErrRotationConflict):
		l.handleReplay(ctx, tok, ip, userAgent, "concurrent rotation of refresh token")
		return nil, ErrReplayDetected
	default:
		return nil, err
	}
}

func (l *Ledger) handleReplay(ctx context.Context, tok *Token, ip, userAgent, description string) {
	revoked, err := l.RevokeDescendants(ctx, tok, ip, ReasonReplayDetected)
	data := map[string]string{
		"rule":                "refresh_token_reuse",
		"token_id":            tok.ID,
		"revoked_descendants": strconv.Itoa(revoked),
	}
	if err != nil {
		data["revocation_error"] = err.Error()
	}
	l.recorder.Log(ctx, events.Entry{
		UserID:      tok.UserID,
		Type:        events.EventSuspiciousActivity,
		Description: description,
		IP:          ip,
		UserAgent:   userAgent,
		Data:        data,
		Succeeded:   false,
	})
}

// RevokeDescendants walks the replacement chain forward from tok and revokes every Active
// descendant. It returns how many tokens it revoked.
func (l *Ledger) RevokeDescendants(ctx context.Context, tok *Token, ip, reason string) (int, error) {
	if tok == nil {
		return 0, nil
	}
	now := l.cfg.Now().UTC()

	// the caller's copy may predate a concurrent rotation
	current, err := l.store.Get(ctx, tok.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	revoked := 0
	next := current.ReplacedBy
	for hops := 0; next != "" && hops < maxChainLength; hops++ {
		changed, replacedBy, err := l.store.Revoke(ctx, next, now, ip, reason)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return revoked, nil
			}
			return revoked, err
		}
		if changed {
			revoked++
		}
		next = replacedBy
	}
	return revoked, nil
}

// Revoke revokes the token identified by value. Revoking a token that is not Active is a
// no-op returning false. ownerID, when set, must match the token owner.
func (l *Ledger) Revoke(ctx context.Context, value, ownerID, ip, userAgent, reason string) (bool, error) {
	tok, err := l.Lookup(ctx, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if ownerID != "" && tok.UserID != ownerID {
		return false, nil
	}
	if reason == "" {
		reason = ReasonLogout
	}

	changed, _, err := l.store.Revoke(ctx, tok.ID, l.cfg.Now().UTC(), ip, reason)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if changed {
		l.recorder.Log(ctx, events.Entry{
			UserID:      tok.UserID,
			Type:        events.EventTokenRevoked,
			Description: "Refresh token revoked",
			IP:          ip,
			UserAgent:   userAgent,
			Data: map[string]string{
				"token_id": tok.ID,
				"reason":   reason,
			},
			Succeeded: true,
		})
	}
	return changed, nil
}

// RevokeAllForUser revokes every Active token owned by userID and returns the count.
func (l *Ledger) RevokeAllForUser(ctx context.Context, userID, ip, reason string) (int, error) {
	tokens, err := l.store.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if reason == "" {
		reason = ReasonLogoutAll
	}

	now := l.cfg.Now().UTC()
	revoked := 0
	for _, tok := range tokens {
		if !tok.IsActive(now) {
			continue
		}
		changed, _, err := l.store.Revoke(ctx, tok.ID, now, ip, reason)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return revoked, err
		}
		if changed {
			revoked++
		}
	}
	return revoked, nil
}

// Chain returns the token for value followed by every descendant in rotation order.
func (l *Ledger) Chain(ctx context.Context, value string) ([]*Token, error) {
	tok, err := l.Lookup(ctx, value)
	if err != nil {
		return nil, err
	}
	chain := []*Token{tok}
	for next := tok.ReplacedBy; next != "" && len(chain) < maxChainLength; {
		child, err := l.store.Get(ctx, next)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				break
			}
			return nil, err
		}
		chain = append(chain, child)
		next = child.ReplacedBy
	}
	return chain, nil
}
