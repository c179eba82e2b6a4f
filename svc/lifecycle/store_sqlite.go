package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/dmitrymomot/contractflow/pkg/audit"
	"github.com/dmitrymomot/contractflow/pkg/fsm"
	"github.com/dmitrymomot/contractflow/svc/lifecycle/migrations"
)

// SQLiteStore persists entities and the audit trail in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// migrations. An empty path or ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if p := strings.TrimSpace(path); p != "" && p != ":memory:" {
		dsn = "file:" + filepath.Clean(p) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection: an in-memory database is per connection, and SQLite
	// serialises writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	store, err := database.NewStore(database.DialectSQLite3, "schema_migrations")
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	provider, err := goose.NewProvider("", db, migrations.SQLite(), goose.WithStore(store))
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Ping verifies the database handle is usable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, entityType fsm.EntityType, entityID, state string) error {
	now := time.Now().UTC().UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fsm_entities (entity_type, entity_id, state, version, created_at, updated_at) VALUES (?, ?, ?, 1, ?, ?)`,
		string(entityType), entityID, state, now, now,
	)
	if isSQLiteUniqueViolation(err) {
		return ErrEntityExists
	}
	return err
}

func (s *SQLiteStore) Load(ctx context.Context, entityType fsm.EntityType, entityID string) (Snapshot, error) {
	var snap Snapshot
	err := s.db.QueryRowContext(ctx,
		`SELECT state, version FROM fsm_entities WHERE entity_type = ? AND entity_id = ?`,
		string(entityType), entityID,
	).Scan(&snap.State, &snap.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrEntityNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *SQLiteStore) Commit(ctx context.Context, c Commit) error {
	if err := c.Event.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE fsm_entities SET state = ?, version = version + 1, updated_at = ?
		 WHERE entity_type = ? AND entity_id = ? AND version = ?`,
		c.State, time.Now().UTC().UnixMilli(), string(c.EntityType), c.EntityID, c.ExpectedVersion,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM fsm_entities WHERE entity_type = ? AND entity_id = ?`,
			string(c.EntityType), c.EntityID,
		).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEntityNotFound
		}
		if err != nil {
			return err
		}
		return ErrVersionConflict
	}

	if err := insertSQLiteEvent(ctx, tx, c.Event); err != nil {
		return err
	}
	return tx.Commit()
}

// Store appends an audit event. A repeated event ID is a no-op.
func (s *SQLiteStore) Store(ctx context.Context, event audit.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return insertSQLiteEvent(ctx, s.db, event)
}

type sqliteExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSQLiteEvent(ctx context.Context, db sqliteExecer, e audit.Event) error {
	meta, err := encodeMetadata(e.Metadata)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO audit_events (id, user_id, action, resource, resource_id, result, error, request_id, metadata, hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, e.UserID, e.Action, e.Resource, e.ResourceID, string(e.Result), e.Error, e.RequestID,
		nullableText(meta), e.Hash, e.CreatedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, c audit.Criteria) ([]audit.Event, error) {
	where, args := criteriaWhere(c, func(int) string { return "?" })
	rows, err := s.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM audit_events`+where+orderAndLimit(c), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]audit.Event, 0)
	for rows.Next() {
		var (
			e       audit.Event
			result  string
			meta    sql.NullString
			created int64
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.UserID, &e.Action, &e.Resource, &e.ResourceID,
			&result, &e.Error, &e.RequestID, &meta, &e.Hash, &created); err != nil {
			return nil, err
		}
		e.Result = audit.Result(result)
		e.CreatedAt = time.Unix(0, created).UTC()
		if meta.Valid {
			if e.Metadata, err = decodeMetadata([]byte(meta.String)); err != nil {
				return nil, err
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count implements audit.StorageCounter.
func (s *SQLiteStore) Count(ctx context.Context, c audit.Criteria) (int64, error) {
	where, args := criteriaWhere(c, func(int) string { return "?" })
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`+where, args...).Scan(&n)
	return n, err
}

func nullableText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func isSQLiteUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
