package events

import (
	"context"
	"sort"
	"sync"
)

// Store persists security events. Implementations must never update or delete an event once
// appended. Query returns matches ordered newest first together with the total match count.
type Store interface {
	Append(ctx context.Context, event SecurityEvent) error
	Query(ctx context.Context, filter Filter, offset, limit int) ([]SecurityEvent, int, error)
}

// MemoryStore is a mutex-guarded in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	events []SecurityEvent
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, event SecurityEvent) error {
	event.Data = cloneData(event.Data)

	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Query(_ context.Context, filter Filter, offset, limit int) ([]SecurityEvent, int, error) {
	s.mu.RLock()
	matched := make([]SecurityEvent, 0)
	for i := len(s.events) - 1; i >= 0; i-- {
		if filter.Matches(s.events[i]) {
			matched = append(matched, s.events[i])
		}
	}
	s.mu.RUnlock()

	// newest first; events appended later win ties
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := len(matched)
	if offset >= total {
		return []SecurityEvent{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	page := make([]SecurityEvent, 0, end-offset)
	for _, e := range matched[offset:end] {
		e.Data = cloneData(e.Data)
		page = append(page, e)
	}
	return page, total, nil
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func cloneData(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
