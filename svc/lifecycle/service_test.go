package lifecycle_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dmitrymomot/contractflow/pkg/audit"
	"github.com/dmitrymomot/contractflow/pkg/broadcast"
	"github.com/dmitrymomot/contractflow/pkg/fsm"
	"github.com/dmitrymomot/contractflow/pkg/requestid"
	"github.com/dmitrymomot/contractflow/svc/lifecycle"
)

const (
	team    = fsm.RoleContractsTeam
	manager = fsm.RoleContractsManager
	system  = fsm.RoleSystem
)

type fixture struct {
	svc     *lifecycle.Service
	store   lifecycle.Store
	engines *lifecycle.Engines
}

func newFixture(t *testing.T, store lifecycle.Store, opts ...lifecycle.Option) fixture {
	t.Helper()
	engines, err := lifecycle.NewEngines(fsm.WithHookTimeout(time.Second))
	require.NoError(t, err)

	svc, err := lifecycle.NewService(store, append([]lifecycle.Option{lifecycle.WithEngines(engines)}, opts...)...)
	require.NoError(t, err)
	return fixture{svc: svc, store: store, engines: engines}
}

func (f fixture) create(t *testing.T, entityType fsm.EntityType, id, state string) {
	t.Helper()
	require.NoError(t, f.svc.Create(context.Background(), entityType, id, state))
}

func (f fixture) state(t *testing.T, entityType fsm.EntityType, id string) string {
	t.Helper()
	s, err := f.svc.CurrentState(context.Background(), entityType, id)
	require.NoError(t, err)
	return s
}

func (f fixture) history(t *testing.T, entityType fsm.EntityType, id string) []lifecycle.HistoryEntry {
	t.Helper()
	h, err := f.svc.GetHistory(context.Background(), entityType, id)
	require.NoError(t, err)
	return h
}

func TestService_PrimeContractScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("team starts a proposal", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, lifecycle.NewMemoryStore())
		f.create(t, lifecycle.PrimeContract, "pc-1", "OPPORTUNITY_IDENTIFIED")

		next, err := f.svc.Transition(ctx, lifecycle.PrimeContract, "pc-1", "PROPOSAL_IN_PROGRESS", "alice", team)
		require.NoError(t, err)
		assert.Equal(t, "PROPOSAL_IN_PROGRESS", next)
		assert.Equal(t, "PROPOSAL_IN_PROGRESS", f.state(t, lifecycle.PrimeContract, "pc-1"))

		h := f.history(t, lifecycle.PrimeContract, "pc-1")
		require.Len(t, h, 1)
		assert.True(t, h[0].Success)
		assert.Equal(t, "OPPORTUNITY_IDENTIFIED", h[0].FromState)
		assert.Equal(t, "PROPOSAL_IN_PROGRESS", h[0].ToState)
		assert.Equal(t, "alice", h[0].UserID)
		assert.Equal(t, team, h[0].Role)
		assert.Empty(t, h[0].ErrorCode)
	})

	rejections := []struct {
		name  string
		from  string
		to    string
		role  fsm.Role
		code  fsm.Code
		isErr error
	}{
		{"skipping ahead is not an edge", "OPPORTUNITY_IDENTIFIED", "ACTIVE", manager, fsm.CodeInvalidTransition, fsm.ErrInvalidTransition},
		{"team cannot activate an award", "AWARDED", "ACTIVE", team, fsm.CodeUnauthorizedRole, fsm.ErrUnauthorizedRole},
		{"closed is terminal", "CLOSED", "ACTIVE", manager, fsm.CodeInvalidTransition, fsm.ErrInvalidTransition},
		{"system cannot take a team edge", "ACTIVE", "CLOSEOUT_PENDING", system, fsm.CodeUnauthorizedRole, fsm.ErrUnauthorizedRole},
		{"manager cannot take a system edge", "ACTIVE", "OPTION_PENDING", manager, fsm.CodeUnauthorizedRole, fsm.ErrUnauthorizedRole},
	}
	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, lifecycle.NewMemoryStore())
			f.create(t, lifecycle.PrimeContract, "pc-1", tt.from)

			next, err := f.svc.Transition(ctx, lifecycle.PrimeContract, "pc-1", tt.to, "bob", tt.role)
			require.Error(t, err)
			assert.Empty(t, next)
			assert.ErrorIs(t, err, tt.isErr)
			assert.Equal(t, tt.code, fsm.CodeOf(err))
			assert.False(t, fsm.IsRetryable(err))

			assert.Equal(t, tt.from, f.state(t, lifecycle.PrimeContract, "pc-1"), "state must not change")

			h := f.history(t, lifecycle.PrimeContract, "pc-1")
			require.Len(t, h, 1)
			assert.False(t, h[0].Success)
			assert.Equal(t, tt.code, h[0].ErrorCode)
			assert.Equal(t, tt.from, h[0].FromState)
			assert.Equal(t, tt.to, h[0].ToState)
			assert.Equal(t, tt.role, h[0].Role)
			assert.NotEmpty(t, h[0].ErrorMessage)
		})
	}

	t.Run("full award path to closeout", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, lifecycle.NewMemoryStore())
		f.create(t, lifecycle.PrimeContract, "pc-2", "OPPORTUNITY_IDENTIFIED")

		steps := []struct {
			to   string
			role fsm.Role
		}{
			{"PROPOSAL_IN_PROGRESS", team},
			{"PROPOSAL_SUBMITTED", manager},
			{"AWARDED", team},
			{"ACTIVE", manager},
			{"OPTION_PENDING", system},
			{"ACTIVE", manager},
			{"STOP_WORK", manager},
			{"CLOSEOUT_PENDING", manager},
			{"CLOSED", manager},
		}
		for _, s := range steps {
			_, err := f.svc.Transition(ctx, lifecycle.PrimeContract, "pc-2", s.to, "carol", s.role)
			require.NoError(t, err, "to %s", s.to)
		}

		h := f.history(t, lifecycle.PrimeContract, "pc-2")
		require.Len(t, h, len(steps))
		for i, s := range steps {
			assert.Equal(t, s.to, h[i].ToState)
			if i > 0 {
				assert.Equal(t, steps[i-1].to, h[i].FromState)
				assert.Greater(t, h[i].Seq, h[i-1].Seq)
			}
		}

		edges, err := f.svc.GetAvailableTransitions(ctx, lifecycle.PrimeContract, "pc-2", manager)
		require.NoError(t, err)
		assert.Empty(t, edges)
	})
}

func TestService_ModificationRevisionLoop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, lifecycle.NewMemoryStore())
	f.create(t, lifecycle.Modification, "mod-1", "MOD_UNDER_REVIEW")

	for range 3 {
		next, err := f.svc.Transition(ctx, lifecycle.Modification, "mod-1", "MOD_DRAFTED", "mgr", manager)
		require.NoError(t, err)
		assert.Equal(t, "MOD_DRAFTED", next)

		next, err = f.svc.Transition(ctx, lifecycle.Modification, "mod-1", "MOD_UNDER_REVIEW", "tm", team)
		require.NoError(t, err)
		assert.Equal(t, "MOD_UNDER_REVIEW", next)
	}

	h := f.history(t, lifecycle.Modification, "mod-1")
	assert.Len(t, h, 6)
	for _, e := range h {
		assert.True(t, e.Success)
	}
}

func TestService_NDAAndMOU(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, lifecycle.NewMemoryStore())
	f.create(t, lifecycle.NDA, "nda-1", "NDA_REQUESTED")
	f.create(t, lifecycle.MOU, "mou-1", "MOU_DRAFT")

	for _, s := range []struct {
		to   string
		role fsm.Role
	}{
		{"NDA_DRAFTED", team},
		{"NDA_IN_NEGOTIATION", team},
		{"NDA_DRAFTED", team},
		{"NDA_PENDING_SIGNATURE", manager},
		{"NDA_ACTIVE", team},
		{"NDA_EXPIRED", system},
	} {
		_, err := f.svc.Transition(ctx, lifecycle.NDA, "nda-1", s.to, "u", s.role)
		require.NoError(t, err, "to %s", s.to)
	}

	_, err := f.svc.Transition(ctx, lifecycle.MOU, "mou-1", "MOU_UNDER_REVIEW", "u", team)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, lifecycle.MOU, "mou-1", "MOU_PENDING_SIGNATURE", "u", team)
	assert.ErrorIs(t, err, fsm.ErrUnauthorizedRole)

	// Histories are scoped per entity.
	assert.Len(t, f.history(t, lifecycle.NDA, "nda-1"), 6)
	assert.Len(t, f.history(t, lifecycle.MOU, "mou-1"), 2)
}

func TestService_UnresolvableEntities(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unregistered entity type", func(t *testing.T) {
		t.Parallel()
		store := lifecycle.NewMemoryStore()
		f := newFixture(t, store)

		_, err := f.svc.Transition(ctx, "invoice", "inv-1", "PAID", "u", manager)
		assert.ErrorIs(t, err, fsm.ErrInvalidState)
		assert.Contains(t, err.Error(), "no engine registered")
		assert.Zero(t, store.Len(), "nothing to audit without an entity context")

		_, err = f.svc.GetAvailableTransitions(ctx, "invoice", "inv-1", manager)
		assert.ErrorIs(t, err, fsm.ErrInvalidState)
		_, err = f.svc.GetHistory(ctx, "invoice", "inv-1")
		assert.ErrorIs(t, err, fsm.ErrInvalidState)
		_, err = f.svc.CurrentState(ctx, "invoice", "inv-1")
		assert.ErrorIs(t, err, fsm.ErrInvalidState)
	})

	t.Run("missing entity", func(t *testing.T) {
		t.Parallel()
		store := lifecycle.NewMemoryStore()
		f := newFixture(t, store)

		_, err := f.svc.Transition(ctx, lifecycle.NDA, "ghost", "NDA_DRAFTED", "u", team)
		assert.ErrorIs(t, err, fsm.ErrInvalidState)
		assert.ErrorIs(t, err, lifecycle.ErrEntityNotFound)
		assert.Contains(t, err.Error(), "not found")
		assert.Zero(t, store.Len())

		_, err = f.svc.GetAvailableTransitions(ctx, lifecycle.NDA, "ghost", team)
		assert.ErrorIs(t, err, fsm.ErrInvalidState)
	})

	t.Run("stored state outside the graph", func(t *testing.T) {
		t.Parallel()
		store := lifecycle.NewMemoryStore()
		f := newFixture(t, store)
		require.NoError(t, store.Create(ctx, lifecycle.NDA, "odd", "LIMBO"))

		_, err := f.svc.Transition(ctx, lifecycle.NDA, "odd", "NDA_DRAFTED", "u", team)
		assert.ErrorIs(t, err, fsm.ErrInvalidState)

		h := f.history(t, lifecycle.NDA, "odd")
		require.Len(t, h, 1)
		assert.Equal(t, fsm.CodeInvalidState, h[0].ErrorCode)
	})
}

func TestService_Create(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, lifecycle.NewMemoryStore())

	require.NoError(t, f.svc.Create(ctx, lifecycle.MOU, "m-1", "MOU_DRAFT"))

	err := f.svc.Create(ctx, lifecycle.MOU, "m-1", "MOU_DRAFT")
	assert.ErrorIs(t, err, lifecycle.ErrEntityExists)

	err = f.svc.Create(ctx, lifecycle.MOU, "m-2", "NDA_ACTIVE")
	assert.ErrorIs(t, err, fsm.ErrInvalidState)

	err = f.svc.Create(ctx, lifecycle.MOU, "", "MOU_DRAFT")
	assert.ErrorIs(t, err, fsm.ErrInvalidState)

	assert.Empty(t, f.history(t, lifecycle.MOU, "m-1"), "creation is not a transition")
}

func TestService_GetAvailableTransitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, lifecycle.NewMemoryStore())
	f.create(t, lifecycle.PrimeContract, "pc-1", "ACTIVE")

	tests := []struct {
		role fsm.Role
		want []string
	}{
		{team, []string{"CLOSEOUT_PENDING"}},
		{manager, []string{"STOP_WORK", "CLOSEOUT_PENDING"}},
		{system, []string{"OPTION_PENDING"}},
	}
	for _, tt := range tests {
		edges, err := f.svc.GetAvailableTransitions(ctx, lifecycle.PrimeContract, "pc-1", tt.role)
		require.NoError(t, err)
		got := make([]string, len(edges))
		for i, e := range edges {
			got[i] = e.To
		}
		assert.Equal(t, tt.want, got, "role %s", tt.role)
	}

	assert.Empty(t, f.history(t, lifecycle.PrimeContract, "pc-1"), "introspection writes no audit events")
}

func TestService_Hooks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("exit runs before enter", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, lifecycle.NewMemoryStore())
		f.create(t, lifecycle.NDA, "n-1", "NDA_PENDING_SIGNATURE")

		var mu sync.Mutex
		var calls []string
		record := func(name string) fsm.Hook[lifecycle.NDAState] {
			return func(context.Context, fsm.TransitionContext[lifecycle.NDAState]) error {
				mu.Lock()
				defer mu.Unlock()
				calls = append(calls, name)
				return nil
			}
		}
		require.NoError(t, f.engines.NDA.OnEnter(lifecycle.NDAActive, record("enter")))
		require.NoError(t, f.engines.NDA.OnExit(lifecycle.NDAPendingSignature, record("exit")))

		_, err := f.svc.Transition(ctx, lifecycle.NDA, "n-1", "NDA_ACTIVE", "u", team)
		require.NoError(t, err)
		assert.Equal(t, []string{"exit", "enter"}, calls)
	})

	t.Run("failing exit hook blocks the transition", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, lifecycle.NewMemoryStore())
		f.create(t, lifecycle.NDA, "n-2", "NDA_PENDING_SIGNATURE")

		entered := false
		require.NoError(t, f.engines.NDA.OnExit(lifecycle.NDAPendingSignature,
			func(context.Context, fsm.TransitionContext[lifecycle.NDAState]) error {
				return errors.New("signature service down")
			}))
		require.NoError(t, f.engines.NDA.OnEnter(lifecycle.NDAActive,
			func(context.Context, fsm.TransitionContext[lifecycle.NDAState]) error {
				entered = true
				return nil
			}))

		_, err := f.svc.Transition(ctx, lifecycle.NDA, "n-2", "NDA_ACTIVE", "u", team)
		require.Error(t, err)
		assert.ErrorIs(t, err, fsm.ErrHookFailed)
		assert.True(t, fsm.IsRetryable(err))
		assert.Contains(t, err.Error(), "on_exit hook failed: signature service down")
		assert.False(t, entered)
		assert.Equal(t, "NDA_PENDING_SIGNATURE", f.state(t, lifecycle.NDA, "n-2"))

		h := f.history(t, lifecycle.NDA, "n-2")
		require.Len(t, h, 1)
		assert.False(t, h[0].Success)
		assert.Equal(t, fsm.CodeHookFailed, h[0].ErrorCode)
	})

	t.Run("failing enter hook", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, lifecycle.NewMemoryStore())
		f.create(t, lifecycle.MOU, "m-1", "MOU_PENDING_SIGNATURE")

		require.NoError(t, f.engines.MOU.OnEnter(lifecycle.MOUActive,
			func(context.Context, fsm.TransitionContext[lifecycle.MOUState]) error {
				return errors.New("crm sync failed")
			}))

		_, err := f.svc.Transition(ctx, lifecycle.MOU, "m-1", "MOU_ACTIVE", "u", team)
		assert.ErrorIs(t, err, fsm.ErrHookFailed)
		assert.Contains(t, err.Error(), "on_enter hook failed")
		assert.Equal(t, "MOU_PENDING_SIGNATURE", f.state(t, lifecycle.MOU, "m-1"))
	})
}

func TestService_ConcurrentTransitions(t *testing.T) {
	t.Parallel()

	backends := map[string]func(t *testing.T) lifecycle.Store{
		"memory": func(*testing.T) lifecycle.Store { return lifecycle.NewMemoryStore() },
		"sqlite": func(t *testing.T) lifecycle.Store { return openSQLite(t) },
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			f := newFixture(t, open(t))
			f.create(t, lifecycle.PrimeContract, "pc-race", "ACTIVE")

			// Both attempts load ACTIVE before either commits.
			var barrier sync.WaitGroup
			barrier.Add(2)
			require.NoError(t, f.engines.PrimeContract.OnExit(lifecycle.Active,
				func(context.Context, fsm.TransitionContext[lifecycle.PrimeContractState]) error {
					barrier.Done()
					barrier.Wait()
					return nil
				}))

			targets := []string{"STOP_WORK", "CLOSEOUT_PENDING"}
			errs := make([]error, len(targets))
			var wg sync.WaitGroup
			for i, to := range targets {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, errs[i] = f.svc.Transition(ctx, lifecycle.PrimeContract, "pc-race", to, "u", manager)
				}()
			}
			wg.Wait()

			var winners, conflicts int
			winner := ""
			for i, err := range errs {
				switch {
				case err == nil:
					winners++
					winner = targets[i]
				case errors.Is(err, fsm.ErrConflict):
					conflicts++
					assert.True(t, fsm.IsRetryable(err))
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			assert.Equal(t, 1, winners)
			assert.Equal(t, 1, conflicts)
			assert.Equal(t, winner, f.state(t, lifecycle.PrimeContract, "pc-race"))

			h := f.history(t, lifecycle.PrimeContract, "pc-race")
			require.Len(t, h, 2)
			var codes []fsm.Code
			for _, e := range h {
				codes = append(codes, e.ErrorCode)
			}
			assert.ElementsMatch(t, []fsm.Code{"", fsm.CodeConflict}, codes)
		})
	}
}

func TestService_TransitionMetadata(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, lifecycle.NewMemoryStore(),
		lifecycle.WithAuditOptions(audit.WithMetadataFilter(audit.NewMetadataFilter())),
	)
	f.create(t, lifecycle.NDA, "n-1", "NDA_ACTIVE")

	_, err := f.svc.Transition(ctx, lifecycle.NDA, "n-1", "NDA_TERMINATED", "mgr", manager,
		lifecycle.WithReason("counterparty breach"),
		lifecycle.WithMetadata("ticket", "LEGAL-42"),
		lifecycle.WithMetadata("api_key", "sk-live-123"),
		lifecycle.WithMetadata("to_state", "NDA_ACTIVE"),
	)
	require.NoError(t, err)

	h := f.history(t, lifecycle.NDA, "n-1")
	require.Len(t, h, 1)
	assert.Equal(t, "counterparty breach", h[0].Reason)
	assert.Equal(t, "NDA_TERMINATED", h[0].ToState, "reserved keys cannot be overridden")
	assert.Equal(t, "LEGAL-42", h[0].Metadata["ticket"])
	assert.NotContains(t, h[0].Metadata, "api_key")
}

func TestService_HashedEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := lifecycle.NewMemoryStore()
	hasher := audit.NewSHA256Hasher()
	f := newFixture(t, store, lifecycle.WithAuditOptions(audit.WithHasher(hasher)))
	f.create(t, lifecycle.MOU, "m-1", "MOU_DRAFT")

	_, err := f.svc.Transition(ctx, lifecycle.MOU, "m-1", "MOU_UNDER_REVIEW", "u", team)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, lifecycle.MOU, "m-1", "MOU_ACTIVE", "u", team)
	require.Error(t, err)

	events, err := store.Query(ctx, audit.Criteria{Action: lifecycle.ActionTransition})
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.NotEmpty(t, e.Hash)
		assert.True(t, audit.Verify(hasher, e))
	}
}

func TestService_Metrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	metrics := lifecycle.NewMetrics(reg)
	f := newFixture(t, lifecycle.NewMemoryStore(), lifecycle.WithMetrics(metrics))
	f.create(t, lifecycle.NDA, "n-1", "NDA_REQUESTED")

	_, err := f.svc.Transition(ctx, lifecycle.NDA, "n-1", "NDA_DRAFTED", "u", team)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, lifecycle.NDA, "n-1", "NDA_ACTIVE", "u", team)
	require.Error(t, err)
	_, err = f.svc.Transition(ctx, "invoice", "i-1", "PAID", "u", team)
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransitionsTotal.WithLabelValues("nda", lifecycle.OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransitionsTotal.WithLabelValues("nda", lifecycle.OutcomeRejected)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransitionsTotal.WithLabelValues("unregistered", lifecycle.OutcomeRejected)), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.TransitionDuration))
}

func TestService_Tracing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	f := newFixture(t, lifecycle.NewMemoryStore(), lifecycle.WithTracerProvider(tp))
	f.create(t, lifecycle.PrimeContract, "pc-1", "AWARDED")

	_, err := f.svc.Transition(requestid.WithContext(ctx, "req-trace-1"), lifecycle.PrimeContract, "pc-1", "ACTIVE", "u", team)
	require.Error(t, err)
	_, err = f.svc.Transition(ctx, lifecycle.PrimeContract, "pc-1", "ACTIVE", "u", manager)
	require.NoError(t, err)

	history := f.history(t, lifecycle.PrimeContract, "pc-1")
	require.Len(t, history, 2)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	rejected := spanAttrs(spans[0].Attributes())
	assert.Equal(t, "lifecycle.Transition", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "UNAUTHORIZED_ROLE", rejected["fsm.error_code"])
	assert.Equal(t, lifecycle.OutcomeRejected, rejected["fsm.outcome"])
	assert.Equal(t, "AWARDED", rejected["fsm.from"])
	assert.Equal(t, "req-trace-1", rejected["fsm.request_id"])

	ok := spanAttrs(spans[1].Attributes())
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
	assert.Equal(t, lifecycle.OutcomeSuccess, ok["fsm.outcome"])
	assert.Equal(t, "prime_contract", ok["fsm.entity_type"])
	// A minted request id is shared by the span and the audit event.
	assert.NotEmpty(t, ok["fsm.request_id"])
	assert.Equal(t, history[1].RequestID, ok["fsm.request_id"])
}

func spanAttrs(kvs []attribute.KeyValue) map[string]string {
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	args := m.Called(ctx, key)
	release, _ := args.Get(0).(func(context.Context) error)
	return release, args.Error(1)
}

func TestService_Locker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("locks per entity and releases", func(t *testing.T) {
		t.Parallel()
		locker := &MockLocker{}
		released := 0
		locker.On("Lock", mock.Anything, "nda:n-1").
			Return(func(context.Context) error { released++; return nil }, nil).Once()

		f := newFixture(t, lifecycle.NewMemoryStore(), lifecycle.WithLocker(locker))
		f.create(t, lifecycle.NDA, "n-1", "NDA_REQUESTED")

		_, err := f.svc.Transition(ctx, lifecycle.NDA, "n-1", "NDA_DRAFTED", "u", team)
		require.NoError(t, err)
		assert.Equal(t, 1, released)
		locker.AssertExpectations(t)
	})

	t.Run("lock failure aborts before loading", func(t *testing.T) {
		t.Parallel()
		locker := &MockLocker{}
		locker.On("Lock", mock.Anything, "nda:n-1").Return(nil, errors.New("redis unavailable")).Once()

		store := lifecycle.NewMemoryStore()
		f := newFixture(t, store, lifecycle.WithLocker(locker))
		f.create(t, lifecycle.NDA, "n-1", "NDA_REQUESTED")

		_, err := f.svc.Transition(ctx, lifecycle.NDA, "n-1", "NDA_DRAFTED", "u", team)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis unavailable")
		assert.Empty(t, fsm.CodeOf(err))
		assert.Equal(t, "NDA_REQUESTED", f.state(t, lifecycle.NDA, "n-1"))
		assert.Zero(t, store.Len())
		locker.AssertExpectations(t)
	})
}

type failingAppendStore struct {
	*lifecycle.MemoryStore
}

func (s failingAppendStore) Store(context.Context, audit.Event) error {
	return audit.ErrStorageNotAvailable
}

func TestService_AuditWriteFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := failingAppendStore{lifecycle.NewMemoryStore()}
	f := newFixture(t, store)
	f.create(t, lifecycle.NDA, "n-1", "NDA_REQUESTED")

	_, err := f.svc.Transition(ctx, lifecycle.NDA, "n-1", "NDA_ACTIVE", "u", team)
	require.Error(t, err)
	assert.ErrorIs(t, err, fsm.ErrInvalidTransition)
	assert.ErrorIs(t, err, audit.ErrStorageNotAvailable)
}

func TestNewService(t *testing.T) {
	t.Parallel()

	_, err := lifecycle.NewService(nil)
	require.Error(t, err)

	engines, err := lifecycle.NewEngines()
	require.NoError(t, err)

	_, err = lifecycle.NewService(lifecycle.NewMemoryStore(),
		lifecycle.WithEngines(engines),
		lifecycle.WithMachines(engines.NDA.Machine()),
	)
	assert.ErrorIs(t, err, lifecycle.ErrDuplicateMachine)

	svc, err := lifecycle.NewService(lifecycle.NewMemoryStore(), lifecycle.WithEngines(engines))
	require.NoError(t, err)
	assert.Equal(t, []fsm.EntityType{"modification", "mou", "nda", "prime_contract"}, svc.EntityTypes())
}

func TestService_RequestID(t *testing.T) {
	t.Parallel()

	f := newFixture(t, lifecycle.NewMemoryStore())
	f.create(t, lifecycle.MOU, "m-1", "MOU_DRAFT")

	ctx := requestid.WithContext(context.Background(), "req-42")
	_, err := f.svc.Transition(ctx, lifecycle.MOU, "m-1", "MOU_UNDER_REVIEW", "u", team)
	require.NoError(t, err)
	_, err = f.svc.Transition(context.Background(), lifecycle.MOU, "m-1", "MOU_ACTIVE", "u", team)
	require.Error(t, err)

	h := f.history(t, lifecycle.MOU, "m-1")
	require.Len(t, h, 2)
	assert.Equal(t, "req-42", h[0].RequestID)
	assert.NotEmpty(t, h[1].RequestID, "attempts without a caller id get a fresh one")
	assert.NotEqual(t, h[0].RequestID, h[1].RequestID)
}

func TestService_Notifier(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	notices := broadcast.NewMemoryBroadcaster[lifecycle.TransitionNotice](8)
	defer notices.Close()
	sub := notices.Subscribe(ctx)

	f := newFixture(t, lifecycle.NewMemoryStore(), lifecycle.WithNotifier(notices))
	f.create(t, lifecycle.MOU, "m-1", "MOU_DRAFT")

	_, err := f.svc.Transition(requestid.WithContext(ctx, "req-7"), lifecycle.MOU, "m-1", "MOU_UNDER_REVIEW", "u-1", team)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, lifecycle.MOU, "m-1", "MOU_ACTIVE", "u-1", team)
	require.Error(t, err)

	select {
	case msg := <-sub.Receive():
		n := msg.Data
		assert.Equal(t, lifecycle.MOU, n.EntityType)
		assert.Equal(t, "m-1", n.EntityID)
		assert.Equal(t, "MOU_DRAFT", n.FromState)
		assert.Equal(t, "MOU_UNDER_REVIEW", n.ToState)
		assert.Equal(t, "u-1", n.UserID)
		assert.Equal(t, team, n.Role)
		assert.Equal(t, "req-7", n.RequestID)
		assert.NotEmpty(t, n.EventID)
		assert.False(t, n.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no notice for the committed transition")
	}

	select {
	case msg := <-sub.Receive():
		t.Fatalf("rejected transition published a notice: %+v", msg.Data)
	default:
	}
}
