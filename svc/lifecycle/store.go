package lifecycle

import (
	"context"
	"errors"

	"github.com/dmitrymomot/contractflow/pkg/audit"
	"github.com/dmitrymomot/contractflow/pkg/fsm"
)

var (
	// ErrEntityNotFound is returned by Store.Load and Store.Commit for unknown entities.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrEntityExists is returned by Store.Create when the entity already exists.
	ErrEntityExists = errors.New("entity already exists")

	// ErrVersionConflict is returned by Store.Commit when the entity changed
	// after it was loaded.
	ErrVersionConflict = errors.New("entity version conflict")
)

// Snapshot is the persisted lifecycle position of one entity.
type Snapshot struct {
	State   string
	Version int64
}

// Commit describes a successful transition to persist: the new state,
// guarded by the version it was computed from, and its audit event.
type Commit struct {
	EntityType      fsm.EntityType
	EntityID        string
	ExpectedVersion int64
	State           string
	Event           audit.Event
}

// Store persists entity states and the audit trail. Commit must apply the
// state change and append the event atomically, and must fail with
// ErrVersionConflict without writing anything when the stored version is not
// ExpectedVersion. Audit events are never updated or deleted.
type Store interface {
	audit.Storage

	Create(ctx context.Context, entityType fsm.EntityType, entityID, state string) error
	Load(ctx context.Context, entityType fsm.EntityType, entityID string) (Snapshot, error)
	Commit(ctx context.Context, c Commit) error
}
