package lifecycle

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/contractflow/pkg/audit"
	"github.com/dmitrymomot/contractflow/pkg/fsm"
	"github.com/dmitrymomot/contractflow/pkg/pg"
)

// PostgresStore persists entities and the audit trail in PostgreSQL. The
// schema lives in migrations.Postgres and is applied by pg.Migrate.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, entityType fsm.EntityType, entityID, state string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO fsm_entities (entity_type, entity_id, state) VALUES ($1, $2, $3)`,
		string(entityType), entityID, state,
	)
	if pg.IsDuplicateKeyError(err) {
		return ErrEntityExists
	}
	return err
}

func (s *PostgresStore) Load(ctx context.Context, entityType fsm.EntityType, entityID string) (Snapshot, error) {
	var snap Snapshot
	err := s.pool.QueryRow(ctx,
		`SELECT state, version FROM fsm_entities WHERE entity_type = $1 AND entity_id = $2`,
		string(entityType), entityID,
	).Scan(&snap.State, &snap.Version)
	if pg.IsNotFoundError(err) {
		return Snapshot{}, ErrEntityNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *PostgresStore) Commit(ctx context.Context, c Commit) error {
	if err := c.Event.Validate(); err != nil {
		return err
	}

	return pg.WithTx(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE fsm_entities SET state = $1, version = version + 1, updated_at = now()
			 WHERE entity_type = $2 AND entity_id = $3 AND version = $4`,
			c.State, string(c.EntityType), c.EntityID, c.ExpectedVersion,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM fsm_entities WHERE entity_type = $1 AND entity_id = $2)`,
				string(c.EntityType), c.EntityID,
			).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrEntityNotFound
			}
			return ErrVersionConflict
		}
		return insertPostgresEvent(ctx, tx, c.Event)
	})
}

// Store appends an audit event. A repeated event ID is a no-op.
func (s *PostgresStore) Store(ctx context.Context, event audit.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return insertPostgresEvent(ctx, s.pool, event)
}

// pgExecer is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertPostgresEvent(ctx context.Context, db pgExecer, e audit.Event) error {
	meta, err := encodeMetadata(e.Metadata)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx,
		`INSERT INTO audit_events (id, user_id, action, resource, resource_id, result, error, request_id, metadata, hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, e.UserID, e.Action, e.Resource, e.ResourceID, string(e.Result), e.Error, e.RequestID,
		meta, e.Hash, e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, c audit.Criteria) ([]audit.Event, error) {
	where, args := criteriaWhere(c, pgPlaceholder)
	rows, err := s.pool.Query(ctx, `SELECT `+eventColumns+` FROM audit_events`+where+orderAndLimit(c), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]audit.Event, 0)
	for rows.Next() {
		var (
			e      audit.Event
			result string
			meta   []byte
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.UserID, &e.Action, &e.Resource, &e.ResourceID,
			&result, &e.Error, &e.RequestID, &meta, &e.Hash, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Result = audit.Result(result)
		e.CreatedAt = e.CreatedAt.UTC()
		if e.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count implements audit.StorageCounter.
func (s *PostgresStore) Count(ctx context.Context, c audit.Criteria) (int64, error) {
	where, args := criteriaWhere(c, pgPlaceholder)
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_events`+where, args...).Scan(&n)
	return n, err
}

func pgPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}
