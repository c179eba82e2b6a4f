package broadcast_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/contractflow/pkg/broadcast"
)

func TestMemoryBroadcaster_Delivery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := broadcast.NewMemoryBroadcaster[string](4)
	defer b.Close()

	first := b.Subscribe(ctx)
	second := b.Subscribe(ctx)
	assert.Equal(t, 2, b.Subscribers())

	require.NoError(t, b.Broadcast(ctx, broadcast.Message[string]{Data: "ACTIVE"}))

	for _, sub := range []broadcast.Subscriber[string]{first, second} {
		select {
		case msg := <-sub.Receive():
			assert.Equal(t, "ACTIVE", msg.Data)
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	}
}

func TestMemoryBroadcaster_SlowSubscriberIsDropped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := broadcast.NewMemoryBroadcaster[int](1)
	defer b.Close()

	slow := b.Subscribe(ctx)
	require.NoError(t, b.Broadcast(ctx, broadcast.Message[int]{Data: 1}))
	require.NoError(t, b.Broadcast(ctx, broadcast.Message[int]{Data: 2}))

	assert.Equal(t, int64(1), b.Dropped())
	assert.Zero(t, b.Subscribers())

	msg, ok := <-slow.Receive()
	require.True(t, ok)
	assert.Equal(t, 1, msg.Data)
	_, ok = <-slow.Receive()
	assert.False(t, ok, "channel closes after the drop")
}

func TestMemoryBroadcaster_ContextCancelUnsubscribes(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[string](4)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub := b.Subscribe(ctx)
	cancel()

	assert.Eventually(t, func() bool { return b.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-sub.Receive()
	assert.False(t, ok)
}

func TestMemoryBroadcaster_Close(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := broadcast.NewMemoryBroadcaster[string](4)
	sub := b.Subscribe(ctx)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, ok := <-sub.Receive()
	assert.False(t, ok)

	late := b.Subscribe(ctx)
	_, ok = <-late.Receive()
	assert.False(t, ok, "subscribing after close yields a closed subscriber")
	assert.NoError(t, b.Broadcast(ctx, broadcast.Message[string]{Data: "ignored"}))
}

func TestMemoryBroadcaster_ConcurrentPublishers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := broadcast.NewMemoryBroadcaster[int](100)
	defer b.Close()
	sub := b.Subscribe(ctx)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 10 {
				_ = b.Broadcast(ctx, broadcast.Message[int]{Data: i*10 + j})
			}
		}()
	}
	wg.Wait()

	seen := 0
	for range 100 {
		<-sub.Receive()
		seen++
	}
	assert.Equal(t, 100, seen)
	assert.Zero(t, b.Dropped())
}

func TestMemoryBroadcaster_ClosedSubscriberIsRemoved(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b := broadcast.NewMemoryBroadcaster[int](1)
	defer b.Close()

	sub := b.Subscribe(ctx)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	require.NoError(t, b.Broadcast(ctx, broadcast.Message[int]{Data: 1}))
	assert.Zero(t, b.Subscribers())
	assert.Zero(t, b.Dropped(), "closing is not falling behind")
}
