package fsm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrymomot/contractflow/pkg/async"
)

type hookKey[S ~string] struct {
	state S
	phase Phase
}

// hookRegistry keeps hooks per (state, phase) in registration order.
type hookRegistry[S ~string] struct {
	mu    sync.RWMutex
	hooks map[hookKey[S]][]Hook[S]
}

func newHookRegistry[S ~string]() *hookRegistry[S] {
	return &hookRegistry[S]{hooks: make(map[hookKey[S]][]Hook[S])}
}

func (r *hookRegistry[S]) add(state S, phase Phase, h Hook[S]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := hookKey[S]{state: state, phase: phase}
	r.hooks[k] = append(r.hooks[k], h)
}

// snapshot returns the hooks registered so far; later registrations do not
// affect an attempt that is already running.
func (r *hookRegistry[S]) snapshot(state S, phase Phase) []Hook[S] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hs := r.hooks[hookKey[S]{state: state, phase: phase}]
	return hs[:len(hs):len(hs)]
}

func (r *hookRegistry[S]) count(state S, phase Phase) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks[hookKey[S]{state: state, phase: phase}])
}

// runHooks calls hooks strictly in order and stops at the first failure.
func runHooks[S ~string](ctx context.Context, hooks []Hook[S], tc TransitionContext[S], timeout time.Duration) error {
	for _, h := range hooks {
		if err := callHook(ctx, h, tc, timeout); err != nil {
			return err
		}
	}
	return nil
}

func callHook[S ~string](ctx context.Context, h Hook[S], tc TransitionContext[S], timeout time.Duration) error {
	if timeout <= 0 {
		return callHookSync(ctx, h, tc)
	}

	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	f := async.Async(hctx, tc, func(ctx context.Context, tc TransitionContext[S]) (struct{}, error) {
		return struct{}{}, h(ctx, tc)
	})
	if _, err := f.AwaitContext(hctx); err != nil {
		if errors.Is(err, async.ErrTimeout) {
			return ErrHookTimeout
		}
		return err
	}
	return nil
}

func callHookSync[S ~string](ctx context.Context, h Hook[S], tc TransitionContext[S]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return h(ctx, tc)
}
