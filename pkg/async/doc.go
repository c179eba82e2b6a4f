// Package async runs a function in the background and hands back a Future
// that can be awaited with or without a deadline.
//
//	f := async.Async(ctx, input, func(ctx context.Context, in Input) (Output, error) {
//	    return process(ctx, in)
//	})
//	out, err := f.AwaitWithTimeout(5 * time.Second)
//	if errors.Is(err, async.ErrTimeout) {
//	    // the function is still running; its result will be discarded
//	}
//
// Panics inside the function are recovered and surfaced as errors wrapping
// ErrPanic, so a misbehaving callback cannot take the process down.
package async
