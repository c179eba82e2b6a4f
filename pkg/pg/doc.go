// Package pg bootstraps PostgreSQL access on top of github.com/jackc/pgx/v5.
//
// Connect opens a *pgxpool.Pool from an env-tagged Config, retrying until the
// database answers a ping. Migrate applies embedded goose migrations through
// the pgx stdlib bridge, WithTx wraps a function in a transaction, and
// Healthcheck returns a ping closure suitable for readiness probes.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, migrations.Postgres(), cfg, log); err != nil {
//		return err
//	}
//
// IsNotFoundError, IsDuplicateKeyError and IsSerializationError classify
// driver errors without leaking pgconn types to callers.
package pg
