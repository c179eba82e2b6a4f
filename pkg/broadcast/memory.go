package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryBroadcaster is an in-process Broadcaster. A subscriber whose buffer
// is full when a message arrives misses that message and is dropped.
type MemoryBroadcaster[T any] struct {
	mu          sync.RWMutex
	subscribers map[*subscriber[T]]struct{}
	buffer      int
	closed      bool
	cleanup     sync.WaitGroup
	dropped     atomic.Int64
}

// NewMemoryBroadcaster creates a broadcaster giving each subscriber a buffer
// of bufferSize messages (at least 1).
func NewMemoryBroadcaster[T any](bufferSize int) *MemoryBroadcaster[T] {
	return &MemoryBroadcaster[T]{
		subscribers: make(map[*subscriber[T]]struct{}),
		buffer:      max(bufferSize, 1),
	}
}

// Subscribe registers a subscriber that is removed when ctx is done. After
// Close it returns an already closed subscriber.
func (b *MemoryBroadcaster[T]) Subscribe(ctx context.Context) Subscriber[T] {
	sub := newSubscriber[T](b.buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		_ = sub.Close()
		return sub
	}
	b.subscribers[sub] = struct{}{}

	if done := ctx.Done(); done != nil {
		b.cleanup.Add(1)
		go func() {
			defer b.cleanup.Done()
			<-done
			b.unsubscribe(sub)
		}()
	}
	return sub
}

// Broadcast delivers msg to every subscriber with buffer space. It always
// returns nil.
func (b *MemoryBroadcaster[T]) Broadcast(_ context.Context, msg Message[T]) error {
	b.mu.RLock()
	var slow, gone []*subscriber[T]
	if !b.closed {
		for sub := range b.subscribers {
			switch sub.send(msg) {
			case bufferFull:
				slow = append(slow, sub)
			case subscriberClosed:
				gone = append(gone, sub)
			}
		}
	}
	b.mu.RUnlock()

	for _, sub := range slow {
		b.dropped.Add(1)
		b.unsubscribe(sub)
	}
	for _, sub := range gone {
		b.unsubscribe(sub)
	}
	return nil
}

// Subscribers reports the number of active subscribers.
func (b *MemoryBroadcaster[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped reports how many subscribers were removed for falling behind.
func (b *MemoryBroadcaster[T]) Dropped() int64 {
	return b.dropped.Load()
}

// Close closes every subscriber. It is safe to call more than once.
func (b *MemoryBroadcaster[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for sub := range b.subscribers {
		_ = sub.Close()
	}
	clear(b.subscribers)
	b.mu.Unlock()

	b.cleanup.Wait()
	return nil
}

func (b *MemoryBroadcaster[T]) unsubscribe(sub *subscriber[T]) {
	b.mu.Lock()
	delete(b.subscribers, sub)
	b.mu.Unlock()
	_ = sub.Close()
}
