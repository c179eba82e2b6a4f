// Package fsm implements a role-authorized, audited finite-state-machine
// engine shared by every governed entity type.
//
// A Config is an immutable state graph: each state maps to its outbound
// edges, and each edge names the minimum Role needed to traverse it. An
// Engine validates a requested transition against the graph, authorizes the
// actor through a RoleTable, runs exit hooks of the source state and enter
// hooks of the target state in registration order, and reports exactly one
// TransitionRecord per attempt to its AuditLogger.
//
// # Graphs
//
//	type NDAState string
//
//	cfg := fsm.MustConfig[NDAState]("nda",
//	    fsm.From[NDAState]("NDA_REQUESTED", fsm.To[NDAState]("NDA_DRAFTED", fsm.RoleContractsTeam)),
//	    fsm.From[NDAState]("NDA_DRAFTED", fsm.To[NDAState]("NDA_ACTIVE", fsm.RoleContractsManager)),
//	)
//	engine := fsm.MustNew(cfg, fsm.WithHookTimeout(10*time.Second))
//
// States referenced only as targets are declared implicitly and are terminal.
// Graphs can also be read from YAML with ParseConfigYAML.
//
// # Authorization
//
// The RoleTable lists, for each actor role, the roles it may stand in for.
// The default table lets contracts_manager stand in for contracts_team.
// system neither stands in for nor is stood in for by the other roles. The
// relation is not transitive.
//
// # Hooks
//
// Exit hooks of the source state always run before enter hooks of the
// target. The first failing hook aborts the attempt with HOOK_FAILED; later
// hooks are not called. A hook that exceeds the configured timeout or panics
// is treated as failed.
//
// # Errors
//
// Every failure is an *Error with a stable Code. Use errors.Is with the
// package sentinels or the Is*Error helpers:
//
//	if fsm.IsUnauthorizedRoleError(err) { /* 403 */ }
//	if fsm.IsInvalidTransitionError(err) { /* 400 */ }
//	if fsm.IsRetryable(err) { /* try again */ }
//
// # Persistence
//
// The engine never stores state. Transition returns the new state for the
// caller to persist. Attempt returns the audit record instead of emitting it,
// so a caller can write state and record in one transaction.
package fsm
