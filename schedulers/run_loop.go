package schedulers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// RunLoop is a cooperative scheduler driven entirely by its owner calling
// Dispatch, typically from inside an existing application loop:
//
//	for !rl.Empty() || !finished {
//		rl.Dispatch()
//	}
//
// Actions may be scheduled from any goroutine. Dispatch must only be called
// by one goroutine at a time; a concurrent Dispatch panics.
type RunLoop struct {
	opts        Options
	q           *timedQueue
	dispatching atomic.Bool

	wakeMu sync.Mutex
	wakeup func(due time.Time)
}

// NewRunLoop returns an empty RunLoop. Nothing runs until Dispatch is called.
func NewRunLoop(optFns ...Option) *RunLoop {
	return &RunLoop{opts: buildOptions(optFns), q: newTimedQueue()}
}

// Now returns the configured clock reading.
func (r *RunLoop) Now() time.Time { return r.opts.Clock() }

// Kind returns KindRunLoop.
func (r *RunLoop) Kind() Kind { return KindRunLoop }

// CreateWorker returns a worker whose actions wait in the shared queue
// until Dispatch runs them. Disposing it drops its queued actions.
func (r *RunLoop) CreateWorker() Worker {
	w := newWorker(KindRunLoop, &r.opts, r.opts.Context)
	w.enqueue = func(a *action) {
		if r.q.push(a) {
			r.wakeMu.Lock()
			fn := r.wakeup
			r.wakeMu.Unlock()
			if fn != nil {
				fn(a.due)
			}
		}
	}
	w.purge = func() int { return r.q.purge(w) }
	return w
}

// SetWakeup registers fn to be called, on the scheduling goroutine, whenever
// an action becomes the earliest pending one. A host loop can use it to cut
// its own sleep short.
func (r *RunLoop) SetWakeup(fn func(due time.Time)) {
	r.wakeMu.Lock()
	r.wakeup = fn
	r.wakeMu.Unlock()
}

// Empty reports whether no action is pending.
func (r *RunLoop) Empty() bool { return r.q.len() == 0 }

// Len returns the number of pending actions. Disposed actions and actions
// of disposed workers are not counted.
func (r *RunLoop) Len() int { return r.q.len() }

// Dispatch runs the earliest pending action, blocking until it is due. It
// returns at once when the queue is empty. Cancelled actions are discarded
// without counting as the dispatched one.
func (r *RunLoop) Dispatch() {
	_ = r.dispatch(context.Background(), false)
}

// DispatchContext is like Dispatch but also waits while the queue is empty.
// It returns ctx.Err() if ctx is done before an action runs.
func (r *RunLoop) DispatchContext(ctx context.Context) error {
	return r.dispatch(ctx, true)
}

func (r *RunLoop) dispatch(ctx context.Context, waitEmpty bool) error {
	if !r.dispatching.CompareAndSwap(false, true) {
		panic("schedulers: RunLoop dispatched concurrently from more than one goroutine")
	}
	defer r.dispatching.Store(false)

	for {
		a, wait, pending := r.q.next(r.opts.Clock())
		if a != nil {
			cancelled := a.IsDisposed()
			a.owner.run(a)
			if !cancelled {
				return nil
			}
			continue
		}
		if !pending && !waitEmpty {
			return nil
		}
		if !r.q.wait(ctx, wait, pending) {
			return ctx.Err()
		}
	}
}
