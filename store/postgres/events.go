package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/events"
	"github.com/google/uuid"
)

// EventStore is the PostgreSQL events.Store. Data is kept as jsonb.
type EventStore struct {
	db DB
}

var _ events.Store = (*EventStore)(nil)

func NewEventStore(db DB) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) Append(ctx context.Context, e events.SecurityEvent) error {
	var data []byte
	if len(e.Data) > 0 {
		var err error
		if data, err = json.Marshal(e.Data); err != nil {
			return fmt.Errorf("encode event data: %w", err)
		}
	}
	var userID *string
	if _, err := uuid.Parse(e.UserID); err == nil {
		userID = &e.UserID
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO security_events (id, user_id, event_type, description, ip, user_agent,
			fingerprint, data, succeeded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, userID, string(e.Type), e.Description, e.IP, e.UserAgent,
		e.Fingerprint, data, e.Succeeded, e.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}

// where renders filter as a WHERE clause with positional arguments.
func where(f events.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if f.UserID != "" {
		// Owners are stored as uuid, so any other id matches nothing.
		if _, err := uuid.Parse(f.UserID); err != nil {
			conds = append(conds, "false")
		} else {
			add("user_id = ?::uuid", f.UserID)
		}
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		add("event_type = ANY(?)", types)
	}
	if !f.Since.IsZero() {
		add("created_at >= ?", f.Since.UTC())
	}
	if !f.Until.IsZero() {
		add("created_at < ?", f.Until.UTC())
	}
	if f.IP != "" {
		add("ip = ?", f.IP)
	}
	if f.Fingerprint != "" {
		add("fingerprint = ?", f.Fingerprint)
	}
	if f.Succeeded != nil {
		add("succeeded = ?", *f.Succeeded)
	}
	if f.ExcludeID != "" {
		if _, err := uuid.Parse(f.ExcludeID); err == nil {
			add("id <> ?::uuid", f.ExcludeID)
		}
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *EventStore) Query(ctx context.Context, f events.Filter, offset, limit int) ([]events.SecurityEvent, int, error) {
	clause, args := where(f)

	var total int
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM security_events"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count security events: %w", err)
	}
	if total == 0 || offset >= total {
		return []events.SecurityEvent{}, total, nil
	}

	sql := `SELECT id::text, user_id::text, event_type, description, ip, user_agent, fingerprint,
		data, succeeded, created_at
		FROM security_events` + clause + " ORDER BY created_at DESC, id"
	if limit > 0 {
		args = append(args, limit)
		sql += " LIMIT $" + strconv.Itoa(len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		sql += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query security events: %w", err)
	}
	defer rows.Close()

	out := make([]events.SecurityEvent, 0)
	for rows.Next() {
		var (
			e      events.SecurityEvent
			userID *string
			typ    string
			data   []byte
			at     time.Time
		)
		if err := rows.Scan(&e.ID, &userID, &typ, &e.Description, &e.IP, &e.UserAgent,
			&e.Fingerprint, &data, &e.Succeeded, &at); err != nil {
			return nil, 0, fmt.Errorf("scan security event: %w", err)
		}
		if userID != nil {
			e.UserID = *userID
		}
		e.Type = events.EventType(typ)
		e.Timestamp = at.UTC()
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, 0, fmt.Errorf("decode event data: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate security events: %w", err)
	}
	return out, total, nil
}
