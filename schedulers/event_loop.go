package schedulers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// EventLoop multiplexes workers onto a fixed pool of long-lived loop
// goroutines. Workers are assigned to loops round-robin; actions of one
// worker always run on the same loop, so they never overlap.
type EventLoop struct {
	opts   Options
	loops  []*timedQueue
	next   atomic.Uint64
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	closeOnce sync.Once
}

// NewEventLoop starts Options.Loops loop goroutines. Call Close to stop them.
func NewEventLoop(optFns ...Option) *EventLoop {
	opts := buildOptions(optFns)
	ctx, cancel := context.WithCancel(opts.Context)
	group, gctx := errgroup.WithContext(ctx)
	e := &EventLoop{
		opts:   opts,
		loops:  make([]*timedQueue, opts.Loops),
		ctx:    ctx,
		cancel: cancel,
		group:  group,
	}
	for i := range e.loops {
		q := newTimedQueue()
		e.loops[i] = q
		group.Go(func() error {
			q.loop(gctx, opts.Clock)
			return nil
		})
	}
	return e
}

// Now returns the configured clock reading.
func (e *EventLoop) Now() time.Time { return e.opts.Clock() }

// Kind returns KindEventLoop.
func (e *EventLoop) Kind() Kind { return KindEventLoop }

// Size returns the number of loop goroutines.
func (e *EventLoop) Size() int { return len(e.loops) }

// CreateWorker binds a new worker to the next loop goroutine.
func (e *EventLoop) CreateWorker() Worker {
	q := e.loops[(e.next.Add(1)-1)%uint64(len(e.loops))]
	w := newWorker(KindEventLoop, &e.opts, e.ctx)
	w.enqueue = func(a *action) { q.push(a) }
	w.purge = func() int { return q.purge(w) }
	if e.ctx.Err() != nil {
		w.Dispose()
	}
	return w
}

// Close stops the loop goroutines and waits for them to exit. Actions still
// queued are dropped. Workers created afterwards are born disposed.
func (e *EventLoop) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.cancel()
		err = e.group.Wait()
	})
	return err
}
