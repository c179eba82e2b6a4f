package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/contractflow/pkg/audit"
	"github.com/dmitrymomot/contractflow/pkg/fsm"
	"github.com/dmitrymomot/contractflow/svc/lifecycle"
)

func TestOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("memory backend", func(t *testing.T) {
		t.Parallel()
		rt, err := lifecycle.Open(ctx, lifecycle.Config{Backend: lifecycle.BackendMemory, HashEvents: true}, nil)
		require.NoError(t, err)
		defer rt.Close()
		sub := rt.Notices.Subscribe(ctx)

		require.NoError(t, rt.Service.Create(ctx, lifecycle.NDA, "n-1", "NDA_REQUESTED"))
		_, err = rt.Service.Transition(ctx, lifecycle.NDA, "n-1", "NDA_DRAFTED", "u", fsm.RoleContractsTeam)
		require.NoError(t, err)

		msg := <-sub.Receive()
		assert.Equal(t, "NDA_DRAFTED", msg.Data.ToState)

		events, err := rt.Store.Query(ctx, audit.Criteria{ResourceID: "n-1"})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.NotEmpty(t, events[0].Hash)
	})

	t.Run("sqlite backend with hook timeout", func(t *testing.T) {
		t.Parallel()
		rt, err := lifecycle.Open(ctx, lifecycle.Config{
			Backend:     lifecycle.BackendSQLite,
			HookTimeout: 20 * time.Millisecond,
		}, nil)
		require.NoError(t, err)
		defer rt.Close()

		require.NoError(t, rt.Engines.MOU.OnEnter(lifecycle.MOUUnderReview,
			func(ctx context.Context, _ fsm.TransitionContext[lifecycle.MOUState]) error {
				<-ctx.Done()
				return ctx.Err()
			}))
		require.NoError(t, rt.Service.Create(ctx, lifecycle.MOU, "m-1", "MOU_DRAFT"))

		_, err = rt.Service.Transition(ctx, lifecycle.MOU, "m-1", "MOU_UNDER_REVIEW", "u", fsm.RoleContractsTeam)
		assert.ErrorIs(t, err, fsm.ErrHookFailed)

		state, err := rt.Service.CurrentState(ctx, lifecycle.MOU, "m-1")
		require.NoError(t, err)
		assert.Equal(t, "MOU_DRAFT", state)

		require.Len(t, rt.Checks, 1)
		assert.NoError(t, rt.Checks[0](ctx))

		require.NoError(t, rt.Close())
		require.NoError(t, rt.Close())
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()
		_, err := lifecycle.Open(ctx, lifecycle.Config{Backend: "etcd"}, nil)
		assert.ErrorIs(t, err, lifecycle.ErrUnknownBackend)
	})
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	t.Parallel()

	_, _, err := lifecycle.OpenStore(context.Background(), lifecycle.Config{Backend: "etcd"}, nil)
	assert.ErrorIs(t, err, lifecycle.ErrUnknownBackend)
}
