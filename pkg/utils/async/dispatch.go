package async

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/m-mizutani/ctxlog"
)

// Group runs background tasks and can wait for all of them
type Group struct {
	wg sync.WaitGroup
}

// Go runs handler in a new goroutine tracked by the group. The handler
// receives a context that keeps the caller's logger but is not cancelled with
// the caller, so work started during a request or a feed tick can finish on
// its own. Errors and panics are logged with task as the label.
func (g *Group) Go(ctx context.Context, task string, handler func(ctx context.Context) error) {
	newCtx := newBackgroundContext(ctx)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		run(newCtx, task, handler)
	}()
}

// Wait blocks until every handler started with Go has returned
func (g *Group) Wait() {
	g.wg.Wait()
}

func run(ctx context.Context, task string, handler func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.From(ctx).Error("Panic in async task",
				"task", task,
				"recover", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	if err := handler(ctx); err != nil {
		ctxlog.From(ctx).Error("Error in async task",
			"task", task,
			"error", err,
		)
	}
}

// newBackgroundContext detaches ctx from its cancellation, keeping the logger
func newBackgroundContext(ctx context.Context) context.Context {
	return ctxlog.With(context.Background(), ctxlog.From(ctx))
}
