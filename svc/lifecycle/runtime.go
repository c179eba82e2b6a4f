package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/contractflow/pkg/audit"
	"github.com/dmitrymomot/contractflow/pkg/broadcast"
	"github.com/dmitrymomot/contractflow/pkg/config"
	"github.com/dmitrymomot/contractflow/pkg/fsm"
	"github.com/dmitrymomot/contractflow/pkg/logger"
	"github.com/dmitrymomot/contractflow/pkg/mongo"
	"github.com/dmitrymomot/contractflow/pkg/pg"
	"github.com/dmitrymomot/contractflow/pkg/redis"
	"github.com/dmitrymomot/contractflow/svc/lifecycle/migrations"
)

// Runtime is a fully wired lifecycle service together with the resources it
// owns. Close releases them in reverse order of acquisition.
type Runtime struct {
	Service *Service
	Engines *Engines
	Store   Store
	// Notices carries committed transitions to in-process subscribers.
	Notices *broadcast.MemoryBroadcaster[TransitionNotice]
	// Checks probe the external dependencies Open connected to.
	Checks []func(context.Context) error

	closers []func() error
}

// Close releases every resource opened by Open.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Open builds the engines, the configured store and an optional Redis locker,
// then assembles a Service. opts are applied after the defaults derived from
// cfg, so callers can add metrics, tracing or override the logger.
func Open(ctx context.Context, cfg Config, log *slog.Logger, opts ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}

	engines, err := NewEngines(fsm.WithHookTimeout(cfg.HookTimeout))
	if err != nil {
		return nil, fmt.Errorf("lifecycle: build engines: %w", err)
	}

	rt := &Runtime{
		Engines: engines,
		Notices: broadcast.NewMemoryBroadcaster[TransitionNotice](cfg.NoticeBuffer),
	}
	rt.closers = append(rt.closers, rt.Notices.Close)

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Store = b.store
	rt.closers = append(rt.closers, b.close)
	if b.check != nil {
		rt.Checks = append(rt.Checks, b.check)
	}

	defaults := []Option{
		WithEngines(engines),
		WithLogger(log),
		WithNotifier(rt.Notices),
		WithAuditOptions(audit.WithMetadataFilter(audit.NewMetadataFilter())),
	}
	if cfg.HashEvents {
		defaults = append(defaults, WithAuditOptions(audit.WithHasher(audit.NewSHA256Hasher())))
	}

	if cfg.LockEnabled {
		var rcfg redis.Config
		if err := config.Load(&rcfg); err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("lifecycle: load redis config: %w", err)
		}
		client, err := redis.Connect(ctx, rcfg)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("lifecycle: connect redis: %w", err)
		}
		rt.closers = append(rt.closers, client.Close)
		rt.Checks = append(rt.Checks, redis.Healthcheck(client))
		defaults = append(defaults, WithLocker(redis.NewLocker(client,
			redis.WithLockTTL(cfg.LockTTL),
			redis.WithKeyPrefix(rcfg.KeyPrefix+"lock:"),
		)))
	}

	svc, err := NewService(b.store, append(defaults, opts...)...)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Service = svc

	log.InfoContext(ctx, "lifecycle runtime ready",
		slog.String("backend", cfg.Backend),
		slog.Bool("lock_enabled", cfg.LockEnabled),
		slog.Duration("hook_timeout", cfg.HookTimeout),
	)
	return rt, nil
}

// OpenStore builds the backend named by cfg.Backend. SQL backends are
// migrated before being returned. Connection settings for PostgreSQL and
// MongoDB come from their own PG_* and MONGODB_* variables.
func OpenStore(ctx context.Context, cfg Config, log *slog.Logger) (Store, func() error, error) {
	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return b.store, b.close, nil
}

type backend struct {
	store Store
	close func() error
	check func(context.Context) error
}

func openBackend(ctx context.Context, cfg Config, log *slog.Logger) (backend, error) {
	if log == nil {
		log = logger.Discard()
	}

	switch cfg.Backend {
	case BackendMemory, "":
		return backend{store: NewMemoryStore(), close: func() error { return nil }}, nil

	case BackendSQLite:
		s, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return backend{}, fmt.Errorf("lifecycle: open sqlite store: %w", err)
		}
		return backend{store: s, close: s.Close, check: s.Ping}, nil

	case BackendPostgres:
		var pcfg pg.Config
		if err := config.Load(&pcfg); err != nil {
			return backend{}, fmt.Errorf("lifecycle: load postgres config: %w", err)
		}
		pool, err := pg.Connect(ctx, pcfg)
		if err != nil {
			return backend{}, fmt.Errorf("lifecycle: connect postgres: %w", err)
		}
		if err := pg.Migrate(ctx, pool, migrations.Postgres(), pcfg, log); err != nil {
			pool.Close()
			return backend{}, fmt.Errorf("lifecycle: migrate postgres: %w", err)
		}
		return backend{
			store: NewPostgresStore(pool),
			close: func() error { pool.Close(); return nil },
			check: pg.Healthcheck(pool),
		}, nil

	case BackendMongo:
		var mcfg mongo.Config
		if err := config.Load(&mcfg); err != nil {
			return backend{}, fmt.Errorf("lifecycle: load mongo config: %w", err)
		}
		db, err := mongo.NewWithDatabase(ctx, mcfg, cfg.MongoDatabase)
		if err != nil {
			return backend{}, fmt.Errorf("lifecycle: connect mongo: %w", err)
		}
		closeClient := func() error { return db.Client().Disconnect(context.Background()) }
		s, err := NewMongoStore(ctx, db)
		if err != nil {
			_ = closeClient()
			return backend{}, fmt.Errorf("lifecycle: prepare mongo store: %w", err)
		}
		return backend{store: s, close: closeClient, check: mongo.Healthcheck(db.Client())}, nil
	}

	return backend{}, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
}
