package lifecycle

import (
	"context"
	"sync"

	"github.com/dmitrymomot/contractflow/pkg/audit"
	"github.com/dmitrymomot/contractflow/pkg/fsm"
)

// MemoryStore keeps entities and the audit trail in process memory.
type MemoryStore struct {
	*audit.MemoryStorage

	mu       sync.RWMutex
	entities map[string]Snapshot
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		MemoryStorage: audit.NewMemoryStorage(),
		entities:      make(map[string]Snapshot),
	}
}

func (s *MemoryStore) Create(ctx context.Context, entityType fsm.EntityType, entityID, state string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := entityKey(entityType, entityID)
	if _, ok := s.entities[key]; ok {
		return ErrEntityExists
	}
	s.entities[key] = Snapshot{State: state, Version: 1}
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, entityType fsm.EntityType, entityID string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.entities[entityKey(entityType, entityID)]
	if !ok {
		return Snapshot{}, ErrEntityNotFound
	}
	return snap, nil
}

// Commit swaps the state and appends the event while holding the audit
// append lock, so readers never see one without the other.
func (s *MemoryStore) Commit(ctx context.Context, c Commit) error {
	return s.StoreFunc(ctx, func() (audit.Event, error) {
		if err := c.Event.Validate(); err != nil {
			return audit.Event{}, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		key := entityKey(c.EntityType, c.EntityID)
		snap, ok := s.entities[key]
		if !ok {
			return audit.Event{}, ErrEntityNotFound
		}
		if snap.Version != c.ExpectedVersion {
			return audit.Event{}, ErrVersionConflict
		}
		s.entities[key] = Snapshot{State: c.State, Version: snap.Version + 1}
		return c.Event, nil
	})
}
