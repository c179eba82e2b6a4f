// Package lifecycle runs the contract lifecycle state machines against stored
// entities.
//
// Four entity types are registered out of the box: prime contracts,
// contract modifications, NDAs and MOUs. Their graphs are built once by
// NewEngines and handed to a Service, which owns the read, transition and
// persist sequence:
//
//	engines, _ := lifecycle.NewEngines(fsm.WithHookTimeout(10 * time.Second))
//	engines.NDA.OnEnter(lifecycle.NDAActive, notifyLegal)
//
//	svc, err := lifecycle.NewService(store,
//		lifecycle.WithEngines(engines),
//		lifecycle.WithLogger(log),
//		lifecycle.WithMetrics(lifecycle.NewMetrics(prometheus.DefaultRegisterer)),
//	)
//
//	next, err := svc.Transition(ctx, lifecycle.NDA, "nda-17", "NDA_ACTIVE", userID, fsm.RoleContractsTeam,
//		lifecycle.WithReason("countersigned"))
//
// # Concurrency
//
// Every stored entity carries a version. Store.Commit compare-and-swaps on
// it and appends the success audit event in the same unit of work. When two
// callers race on one entity exactly one commit wins; the other gets an
// fsm CONFLICT error, which is retryable, and a failed audit event with code
// CONFLICT. WithLocker adds a distributed lock around the whole attempt.
//
// Hooks run before the commit, so a hook may have run for an attempt that
// later loses the race. Hooks should be idempotent.
//
// # Audit trail
//
// Each attempt on a resolvable entity appends one audit event with action
// ActionTransition, resource set to the entity type and resource ID to the
// entity ID. GetHistory reads those events back in storage sequence order.
// Unknown entity types and missing entities fail with INVALID_STATE before
// anything is written.
//
// # Notices
//
// WithNotifier publishes a TransitionNotice after each successful commit.
// Notices are a convenience feed for in-process listeners such as the HTTP
// event stream; the audit trail remains the record.
//
// # Backends
//
// MemoryStore, SQLiteStore, PostgresStore and MongoStore implement Store.
// OpenStore picks one from Config, which LoadConfig reads from FSM_*
// environment variables, and Open assembles the whole runtime.
package lifecycle
