package audit

import (
	"context"
	"maps"
	"sync"
)

// MemoryStorage is an in-process append-only Storage. It has no API for
// mutating or removing stored events.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []Event
	ids    map[string]struct{}
	seq    int64
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{ids: make(map[string]struct{})}
}

// Store appends event and assigns the next sequence number.
func (s *MemoryStorage) Store(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := event.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLocked(event)
	return nil
}

// StoreFunc runs fn while holding the append lock and appends the event it
// returns. If fn fails nothing is appended. Callers use it to make a state
// change and its audit entry visible together.
func (s *MemoryStorage) StoreFunc(ctx context.Context, fn func() (Event, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	event, err := fn()
	if err != nil {
		return err
	}
	if err := event.Validate(); err != nil {
		return err
	}
	s.appendLocked(event)
	return nil
}

func (s *MemoryStorage) appendLocked(event Event) {
	if _, dup := s.ids[event.ID]; dup {
		return
	}
	s.seq++
	event.Seq = s.seq
	event.Metadata = maps.Clone(event.Metadata)
	s.events = append(s.events, event)
	s.ids[event.ID] = struct{}{}
}

// Query returns matching events in append order.
func (s *MemoryStorage) Query(ctx context.Context, criteria Criteria) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, 0)
	for _, e := range s.events {
		if !criteria.Matches(e) {
			continue
		}
		e.Metadata = maps.Clone(e.Metadata)
		out = append(out, e)
		if criteria.Limit > 0 && len(out) == criteria.Limit {
			break
		}
	}
	return out, nil
}

// Count implements StorageCounter.
func (s *MemoryStorage) Count(ctx context.Context, criteria Criteria) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.events {
		if criteria.Matches(e) {
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored events.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
