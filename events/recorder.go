package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ErrInvalidEventType is returned by queries that name a type outside the vocabulary.
var ErrInvalidEventType = errors.New("invalid security event type")

// Entry is the caller-supplied part of a new event.
type Entry struct {
	UserID      string
	Type        EventType
	Description string
	IP          string
	UserAgent   string
	Data        map[string]string
	Succeeded   bool
}

// RecorderConfig wires the recorder's collaborators. Only Store is required.
type RecorderConfig struct {
	Store   Store
	Now     func() time.Time
	NewID   func() string
	Publish func(context.Context, SecurityEvent)
	Warn    func(string, ...any)
}

// Recorder appends events and serves audit queries.
type Recorder struct {
	store   Store
	now     func() time.Time
	newID   func() string
	publish func(context.Context, SecurityEvent)
	warn    func(string, ...any)
}

// NewRecorder builds a Recorder, filling defaults for optional collaborators.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.Store == nil {
		return nil, errors.New("events: store is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Publish == nil {
		cfg.Publish = func(context.Context, SecurityEvent) {}
	}
	if cfg.Warn == nil {
		cfg.Warn = func(string, ...any) {}
	}
	return &Recorder{
		store:   cfg.Store,
		now:     cfg.Now,
		newID:   cfg.NewID,
		publish: cfg.Publish,
		warn:    cfg.Warn,
	}, nil
}

// Log appends an event built from entry and returns it. Persistence failures are reported to
// Warn and swallowed: audit unavailability must not block authentication.
func (r *Recorder) Log(ctx context.Context, entry Entry) SecurityEvent {
	event := SecurityEvent{
		ID:          r.newID(),
		UserID:      strings.TrimSpace(entry.UserID),
		Type:        entry.Type,
		Description: entry.Description,
		IP:          entry.IP,
		UserAgent:   entry.UserAgent,
		Fingerprint: Fingerprint(entry.IP, entry.UserAgent),
		Data:        cloneData(entry.Data),
		Succeeded:   entry.Succeeded,
		Timestamp:   r.now().UTC(),
	}
	if event.Fingerprint != "" && event.Type == EventLoginSucceeded {
		if event.Data == nil {
			event.Data = make(map[string]string, 1)
		}
		event.Data["fingerprint"] = event.Fingerprint
	}
	if !event.Type.Valid() {
		r.warn("goIdentity: security event with unknown type %q recorded", event.Type)
	}

	if err := r.append(ctx, event); err != nil {
		r.warn("goIdentity: security event %s for user %q not persisted: %v", event.Type, event.UserID, err)
	}
	r.publish(ctx, event)

	return event
}

func (r *Recorder) append(ctx context.Context, event SecurityEvent) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.New("event store panicked")
		}
	}()
	return r.store.Append(ctx, event)
}

// Query returns one page of a user's events, newest first, and the total count.
func (r *Recorder) Query(ctx context.Context, userID string, page, pageSize int) ([]SecurityEvent, int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, 0, errors.New("events: user id is required")
	}
	return r.QueryAll(ctx, Filter{UserID: userID}, page, pageSize)
}

// QueryAll returns one page of events across users matching filter.
func (r *Recorder) QueryAll(ctx context.Context, filter Filter, page, pageSize int) ([]SecurityEvent, int, error) {
	for _, t := range filter.Types {
		if !t.Valid() {
			return nil, 0, ErrInvalidEventType
		}
	}
	offset, limit := normalizePage(page, pageSize)
	return r.store.Query(ctx, filter, offset, limit)
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return (page - 1) * pageSize, pageSize
}
