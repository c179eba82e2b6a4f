package broadcast

import (
	"context"
	"sync"
)

// Message wraps one broadcast payload.
type Message[T any] struct {
	Data T
}

// Subscriber receives messages from a Broadcaster. Implementations must be
// safe for concurrent use.
type Subscriber[T any] interface {
	// Receive returns the delivery channel. It is closed when the
	// subscription ends.
	Receive() <-chan Message[T]

	// Close ends the subscription. It is idempotent.
	Close() error
}

// Broadcaster fans messages out to every active subscriber without blocking
// the publisher.
type Broadcaster[T any] interface {
	// Subscribe registers a subscriber for the lifetime of ctx.
	Subscribe(ctx context.Context) Subscriber[T]

	// Broadcast delivers msg to all subscribers that have buffer space.
	Broadcast(ctx context.Context, msg Message[T]) error

	// Close ends every subscription. Later broadcasts are no-ops.
	Close() error
}

type subscriber[T any] struct {
	mu     sync.RWMutex
	ch     chan Message[T]
	closed bool
}

func newSubscriber[T any](buffer int) *subscriber[T] {
	return &subscriber[T]{ch: make(chan Message[T], buffer)}
}

func (s *subscriber[T]) Receive() <-chan Message[T] {
	return s.ch
}

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

type delivery int

const (
	delivered delivery = iota
	bufferFull
	subscriberClosed
)

// send never blocks.
func (s *subscriber[T]) send(msg Message[T]) delivery {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return subscriberClosed
	}
	select {
	case s.ch <- msg:
		return delivered
	default:
		return bufferFull
	}
}
