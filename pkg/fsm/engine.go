package fsm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Engine validates and executes transitions for one entity type. It never
// persists state; callers store the returned state themselves.
type Engine[S ~string] struct {
	config      Config[S]
	roles       RoleTable
	hooks       *hookRegistry[S]
	hookTimeout time.Duration
	now         func() time.Time

	mu    sync.RWMutex
	audit AuditLogger
}

// New creates an engine for cfg. Every role required by an edge must be
// declared in the role table.
func New[S ~string](cfg Config[S], opts ...Option) (*Engine[S], error) {
	if cfg.entityType == "" {
		return nil, fmt.Errorf("%w: config has no entity type", ErrInvalidConfig)
	}

	o := defaultEngineOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := o.roles.Validate(); err != nil {
		return nil, err
	}
	for _, from := range cfg.order {
		for _, e := range cfg.states[from] {
			if !o.roles.Known(e.RequiredRole) {
				return nil, fmt.Errorf("%w: edge %q -> %q requires role %q missing from role table",
					ErrInvalidConfig, from, e.To, e.RequiredRole)
			}
		}
	}

	return &Engine[S]{
		config:      cfg,
		roles:       o.roles,
		hooks:       newHookRegistry[S](),
		hookTimeout: o.hookTimeout,
		now:         o.now,
		audit:       o.audit,
	}, nil
}

// MustNew is like New but panics on error.
func MustNew[S ~string](cfg Config[S], opts ...Option) *Engine[S] {
	e, err := New(cfg, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create fsm engine: %v", err))
	}
	return e
}

func (e *Engine[S]) EntityType() EntityType {
	return e.config.entityType
}

func (e *Engine[S]) Config() Config[S] {
	return e.config
}

// OnEnter appends a hook that runs whenever state is entered.
func (e *Engine[S]) OnEnter(state S, h Hook[S]) error {
	return e.register(state, PhaseEnter, h)
}

// OnExit appends a hook that runs whenever state is left.
func (e *Engine[S]) OnExit(state S, h Hook[S]) error {
	return e.register(state, PhaseExit, h)
}

func (e *Engine[S]) register(state S, phase Phase, h Hook[S]) error {
	if h == nil {
		return ErrNilHook
	}
	if !e.config.Has(state) {
		return NewError(CodeInvalidState, "cannot register %s hook: unknown %s state %q", phase, e.config.entityType, state)
	}
	e.hooks.add(state, phase, h)
	return nil
}

// SetAuditLogger replaces the audit sink. A nil logger disables emission.
func (e *Engine[S]) SetAuditLogger(l AuditLogger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audit = l
}

func (e *Engine[S]) auditLogger() AuditLogger {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.audit
}

// Transition moves from -> to on behalf of userID acting as role. It runs the
// exit hooks of from, then the enter hooks of to, and writes exactly one
// audit record whatever the outcome.
func (e *Engine[S]) Transition(ctx context.Context, from, to S, userID string, role Role, entityID string) (S, error) {
	next, rec, err := e.Attempt(ctx, from, to, userID, role, entityID)

	l := e.auditLogger()
	if l == nil {
		return next, err
	}
	if logErr := l.Log(ctx, rec); logErr != nil {
		logErr = fmt.Errorf("fsm: write audit record: %w", logErr)
		if err != nil {
			return next, errors.Join(err, logErr)
		}
		var zero S
		return zero, logErr
	}
	return next, err
}

// Attempt performs the same validation and hook execution as Transition but
// returns the audit record instead of emitting it, so callers can store it
// in the same unit of work as the new state.
func (e *Engine[S]) Attempt(ctx context.Context, from, to S, userID string, role Role, entityID string) (S, TransitionRecord, error) {
	var zero S
	rec := TransitionRecord{
		EntityType: e.config.entityType,
		EntityID:   entityID,
		FromState:  string(from),
		ToState:    string(to),
		UserID:     userID,
		Role:       role,
	}

	if err := e.CanTransition(from, to, role); err != nil {
		return zero, e.stamp(rec.Fail(err)), err
	}

	tc := TransitionContext[S]{From: from, To: to, UserID: userID, Role: role, EntityID: entityID}

	if err := runHooks(ctx, e.hooks.snapshot(from, PhaseExit), tc, e.hookTimeout); err != nil {
		herr := hookFailed(PhaseExit, err)
		return zero, e.stamp(rec.Fail(herr)), herr
	}
	if err := runHooks(ctx, e.hooks.snapshot(to, PhaseEnter), tc, e.hookTimeout); err != nil {
		herr := hookFailed(PhaseEnter, err)
		return zero, e.stamp(rec.Fail(herr)), herr
	}

	rec.Success = true
	return to, e.stamp(rec), nil
}

// CanTransition runs validation and authorization only. No hooks run and no
// record is produced.
func (e *Engine[S]) CanTransition(from, to S, role Role) error {
	if !e.config.Has(from) {
		return NewError(CodeInvalidState, "unknown %s state %q", e.config.entityType, from)
	}
	edge, ok := e.config.edge(from, to)
	if !ok {
		return NewError(CodeInvalidTransition, "no %s transition from %q to %q", e.config.entityType, from, to)
	}
	if !e.roles.Satisfies(role, edge.RequiredRole) {
		return NewError(CodeUnauthorizedRole, "role %q cannot move %s from %q to %q: requires %q",
			role, e.config.entityType, from, to, edge.RequiredRole)
	}
	return nil
}

// AvailableTransitions returns the edges of state that role may traverse.
// Unknown and terminal states yield an empty list.
func (e *Engine[S]) AvailableTransitions(state S, role Role) []Edge[S] {
	edges := e.config.states[state]
	out := make([]Edge[S], 0, len(edges))
	for _, edge := range edges {
		if e.roles.Satisfies(role, edge.RequiredRole) {
			out = append(out, edge)
		}
	}
	return out
}

// HookCount reports how many hooks are registered for (state, phase).
func (e *Engine[S]) HookCount(state S, phase Phase) int {
	return e.hooks.count(state, phase)
}

func (e *Engine[S]) stamp(rec TransitionRecord) TransitionRecord {
	rec.Timestamp = e.now().UTC()
	return rec
}
