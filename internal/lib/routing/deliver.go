package routing

import (
	"context"
	"runtime/debug"

	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"
)

// deliver invokes callback with a successful result. It runs on its own
// goroutine, so a panicking callback is logged instead of taking down the process.
func deliver(ctx context.Context, callback Callback, result RouteResult) {
	ctx = logging.EnsureLogger(ctx)
	defer func() {
		if r := recover(); r != nil {
			err, _ := errors.ParseStack(debug.Stack())
			skipFrames := 3
			numFrames := 5
			logging.Errorw(ctx, "Route callback: recovered from panic",
				"error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
		}
	}()

	callback(nil, []RouteResult{result})
}

// Future is the pending outcome of RouteAsync
type Future struct {
	done   chan struct{}
	routes []RouteResult
	err    error
}

// Done is closed once the routes have been delivered
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the routes are delivered or ctx ends
func (f *Future) Wait(ctx context.Context) ([]RouteResult, error) {
	select {
	case <-f.done:
		return f.routes, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
