package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/contractflow/pkg/audit"
	"github.com/dmitrymomot/contractflow/pkg/broadcast"
	"github.com/dmitrymomot/contractflow/pkg/fsm"
	"github.com/dmitrymomot/contractflow/pkg/logger"
	"github.com/dmitrymomot/contractflow/pkg/requestid"
)

const tracerName = "github.com/dmitrymomot/contractflow/svc/lifecycle"

// ErrDuplicateMachine is returned by NewService when two machines share an entity type.
var ErrDuplicateMachine = errors.New("lifecycle: entity type registered twice")

// Service applies transitions to stored entities. It resolves the current
// state, delegates validation and hooks to the entity type's engine, and
// commits the new state together with its audit event.
type Service struct {
	store    Store
	machines map[fsm.EntityType]fsm.Machine
	pending  []fsm.Machine

	audit     *audit.Logger
	auditOpts []audit.Option
	reader    *audit.Reader

	log     *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	locker  Locker

	notifier broadcast.Broadcaster[TransitionNotice]
}

// NewService creates a Service over store.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("lifecycle: store is required")
	}

	s := &Service{
		store:    store,
		machines: make(map[fsm.EntityType]fsm.Machine),
		log:      logger.Discard(),
		tracer:   otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, m := range s.pending {
		if m == nil {
			continue
		}
		if _, dup := s.machines[m.EntityType()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMachine, m.EntityType())
		}
		s.machines[m.EntityType()] = m
	}
	s.pending = nil

	auditOpts := append([]audit.Option{audit.WithRequestIDExtractor(requestid.AuditExtractor())}, s.auditOpts...)
	s.audit = audit.NewLogger(store, auditOpts...)
	s.reader = audit.NewReader(store)
	s.log = s.log.With(logger.Component("lifecycle"))

	return s, nil
}

// EntityTypes lists registered entity types in lexical order.
func (s *Service) EntityTypes() []fsm.EntityType {
	out := make([]fsm.EntityType, 0, len(s.machines))
	for t := range s.machines {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func (s *Service) machine(entityType fsm.EntityType) (fsm.Machine, error) {
	m, ok := s.machines[entityType]
	if !ok {
		return nil, fsm.NewError(fsm.CodeInvalidState, "no engine registered for entity type %q", entityType)
	}
	return m, nil
}

func (s *Service) load(ctx context.Context, entityType fsm.EntityType, entityID string) (Snapshot, error) {
	snap, err := s.store.Load(ctx, entityType, entityID)
	if errors.Is(err, ErrEntityNotFound) {
		return Snapshot{}, &fsm.Error{
			Code:    fsm.CodeInvalidState,
			Message: fmt.Sprintf("%s %q not found", entityType, entityID),
			Cause:   err,
		}
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("lifecycle: load %s %q: %w", entityType, entityID, err)
	}
	return snap, nil
}

// Create stores a new entity at state, which must belong to the entity
// type's graph. No audit event is written: creation is not a transition.
func (s *Service) Create(ctx context.Context, entityType fsm.EntityType, entityID, state string) error {
	m, err := s.machine(entityType)
	if err != nil {
		return err
	}
	if entityID == "" {
		return fsm.NewError(fsm.CodeInvalidState, "%s id is required", entityType)
	}
	if !m.HasState(state) {
		return fsm.NewError(fsm.CodeInvalidState, "unknown %s state %q", entityType, state)
	}
	if err := s.store.Create(ctx, entityType, entityID, state); err != nil {
		return fmt.Errorf("lifecycle: create %s %q: %w", entityType, entityID, err)
	}
	return nil
}

// CurrentState returns the stored state of an entity.
func (s *Service) CurrentState(ctx context.Context, entityType fsm.EntityType, entityID string) (string, error) {
	if _, err := s.machine(entityType); err != nil {
		return "", err
	}
	snap, err := s.load(ctx, entityType, entityID)
	if err != nil {
		return "", err
	}
	return snap.State, nil
}

// Transition moves an entity to state to on behalf of userID acting as role
// and returns the new state. Every attempt on a resolvable entity leaves
// exactly one audit event, including rejections and lost races. Unknown
// entity types and missing entities fail with INVALID_STATE and are not
// audited.
func (s *Service) Transition(ctx context.Context, entityType fsm.EntityType, entityID, to, userID string, role fsm.Role, opts ...TransitionOption) (string, error) {
	start := time.Now()
	ctx, reqID := requestid.Ensure(ctx)

	ctx, span := s.tracer.Start(ctx, "lifecycle.Transition",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("fsm.entity_type", string(entityType)),
			attribute.String("fsm.entity_id", entityID),
			attribute.String("fsm.to", to),
			attribute.String("fsm.role", string(role)),
			attribute.String("fsm.request_id", reqID),
		),
	)
	defer span.End()

	next, outcome, err := s.transition(ctx, span, entityType, entityID, to, userID, role, opts)

	label := string(entityType)
	if _, ok := s.machines[entityType]; !ok {
		label = "unregistered"
	}
	s.metrics.observe(label, outcome, time.Since(start))
	span.SetAttributes(attribute.String("fsm.outcome", outcome))

	if err != nil {
		if code := fsm.CodeOf(err); code != "" {
			span.SetAttributes(attribute.String("fsm.error_code", string(code)))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetStatus(codes.Ok, "")
	return next, nil
}

func (s *Service) transition(ctx context.Context, span trace.Span, entityType fsm.EntityType, entityID, to, userID string, role fsm.Role, opts []TransitionOption) (string, string, error) {
	var o transitionOptions
	for _, opt := range opts {
		opt(&o)
	}

	m, err := s.machine(entityType)
	if err != nil {
		return "", OutcomeRejected, err
	}

	if s.locker != nil {
		release, err := s.locker.Lock(ctx, entityKey(entityType, entityID))
		if err != nil {
			return "", OutcomeError, fmt.Errorf("lifecycle: lock %s %q: %w", entityType, entityID, err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.log.WarnContext(ctx, "failed to release entity lock",
					logger.EntityType(string(entityType)),
					logger.EntityID(entityID),
					logger.Error(err),
				)
			}
		}()
	}

	snap, err := s.load(ctx, entityType, entityID)
	if err != nil {
		return "", outcomeOf(err), err
	}
	span.SetAttributes(attribute.String("fsm.from", snap.State))

	log := s.log.With(
		logger.EntityType(string(entityType)),
		logger.EntityID(entityID),
		logger.Transition(snap.State, to),
		logger.UserID(userID),
		logger.Role(role),
		logger.RequestID(requestid.FromContext(ctx)),
	)

	next, rec, err := m.Attempt(ctx, snap.State, to, userID, role, entityID)
	if err != nil {
		log.WarnContext(ctx, "transition rejected", logger.ErrorCode(fsm.CodeOf(err)), logger.Error(err))
		return "", OutcomeRejected, s.appendFailure(ctx, rec, o.metadata, err)
	}

	event, err := s.audit.NewEvent(ctx, ActionTransition, eventOptions(rec, o.metadata)...)
	if err != nil {
		return "", OutcomeError, fmt.Errorf("lifecycle: build audit event: %w", err)
	}

	err = s.store.Commit(ctx, Commit{
		EntityType:      entityType,
		EntityID:        entityID,
		ExpectedVersion: snap.Version,
		State:           next,
		Event:           event,
	})
	switch {
	case err == nil:
		log.InfoContext(ctx, "transition committed")
		s.notify(ctx, rec, event)
		return next, OutcomeSuccess, nil

	case errors.Is(err, ErrVersionConflict):
		cerr := &fsm.Error{
			Code:    fsm.CodeConflict,
			Message: fmt.Sprintf("%s %q changed while moving from %q to %q", entityType, entityID, snap.State, to),
			Cause:   err,
		}
		log.WarnContext(ctx, "transition lost a concurrent update", logger.ErrorCode(cerr.Code))
		return "", OutcomeConflict, s.appendFailure(ctx, rec.Fail(cerr), o.metadata, cerr)

	case errors.Is(err, ErrEntityNotFound):
		return "", OutcomeRejected, &fsm.Error{
			Code:    fsm.CodeInvalidState,
			Message: fmt.Sprintf("%s %q not found", entityType, entityID),
			Cause:   err,
		}

	default:
		werr := fmt.Errorf("lifecycle: commit %s %q: %w", entityType, entityID, err)
		log.ErrorContext(ctx, "failed to commit transition", logger.Error(err))
		return "", OutcomeError, s.appendFailure(ctx, rec.Fail(werr), o.metadata, werr)
	}
}

// appendFailure writes the audit event for a failed attempt and returns
// cause, joined with the append error if the trail could not be written.
func (s *Service) appendFailure(ctx context.Context, rec fsm.TransitionRecord, meta map[string]any, cause error) error {
	event, err := s.audit.NewEvent(ctx, ActionTransition, eventOptions(rec, meta)...)
	if err == nil {
		err = s.store.Store(ctx, event)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "failed to write audit event",
			logger.EntityType(string(rec.EntityType)),
			logger.EntityID(rec.EntityID),
			logger.Error(err),
		)
		return errors.Join(cause, fmt.Errorf("lifecycle: write audit event: %w", err))
	}
	return cause
}

// GetAvailableTransitions lists the edges role may take from the entity's
// current state. It has no side effects.
func (s *Service) GetAvailableTransitions(ctx context.Context, entityType fsm.EntityType, entityID string, role fsm.Role) ([]fsm.Edge[string], error) {
	m, err := s.machine(entityType)
	if err != nil {
		return nil, err
	}
	snap, err := s.load(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return m.AvailableTransitions(snap.State, role), nil
}

// GetHistory returns every recorded transition attempt for an entity in the
// order the audit trail appended them.
func (s *Service) GetHistory(ctx context.Context, entityType fsm.EntityType, entityID string) ([]HistoryEntry, error) {
	if _, err := s.machine(entityType); err != nil {
		return nil, err
	}

	events, err := s.reader.Find(ctx, audit.Criteria{
		Action:     ActionTransition,
		Resource:   string(entityType),
		ResourceID: entityID,
	})
	if err != nil {
		return nil, fmt.Errorf("lifecycle: read history of %s %q: %w", entityType, entityID, err)
	}

	out := make([]HistoryEntry, len(events))
	for i, e := range events {
		out[i] = historyEntry(e)
	}
	return out, nil
}

func outcomeOf(err error) string {
	if fsm.CodeOf(err) != "" {
		return OutcomeRejected
	}
	return OutcomeError
}
