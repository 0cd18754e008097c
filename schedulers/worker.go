package schedulers

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/NetPo4ki/go-rx/subscription"
)

// Scheduler is a time-aware factory of Workers.
type Scheduler interface {
	Now() time.Time
	CreateWorker() Worker
	Kind() Kind
}

// Worker is a queue of actions bound to one execution context. Disposing a
// Worker cancels its pending actions and releases its execution context.
type Worker interface {
	subscription.Subscription
	Now() time.Time
	// Schedule runs fn as soon as possible.
	Schedule(fn func()) subscription.Subscription
	// ScheduleAfter runs fn once d has elapsed.
	ScheduleAfter(d time.Duration, fn func()) subscription.Subscription
	// ScheduleAt runs fn at or after due. Disposing the returned
	// subscription before fn starts prevents it from running.
	ScheduleAt(due time.Time, fn func()) subscription.Subscription
}

// PanicError wraps a value recovered from a panicking action together with
// the stack of the goroutine that panicked.
type PanicError struct {
	Value any
	Stack string
}

// Error formats the recovered value followed by the stack.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", e.Value, e.Stack)
}

func newPanicError(v any) *PanicError {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{Value: v, Stack: string(buf[:n])}
}

type worker struct {
	kind    Kind
	opts    *Options
	ctx     context.Context
	cancel  context.CancelFunc
	life    *subscription.Composite
	enqueue func(a *action)
	// purge, when set, drops this worker's actions from a queue it shares
	// with other workers.
	purge func() int
}

func newWorker(kind Kind, opts *Options, parent context.Context) *worker {
	ctx, cancel := context.WithCancel(parent)
	w := &worker{kind: kind, opts: opts, ctx: ctx, cancel: cancel}
	w.life = subscription.NewComposite(subscription.Func(func() {
		cancel()
		if w.purge != nil {
			for n := w.purge(); n > 0; n-- {
				w.cancelled()
			}
		}
		if opts.Observer != nil {
			opts.Observer.WorkerReleased(ctx, kind)
		}
	}))
	if opts.Observer != nil {
		opts.Observer.WorkerCreated(ctx, kind)
	}
	return w
}

func (w *worker) Now() time.Time { return w.opts.Clock() }

func (w *worker) Schedule(fn func()) subscription.Subscription {
	return w.ScheduleAt(w.Now(), fn)
}

func (w *worker) ScheduleAfter(d time.Duration, fn func()) subscription.Subscription {
	return w.ScheduleAt(w.Now().Add(d), fn)
}

func (w *worker) ScheduleAt(due time.Time, fn func()) subscription.Subscription {
	if fn == nil {
		panic("schedulers: nil action")
	}
	if w.IsDisposed() {
		return subscription.Disposed()
	}
	a := &action{due: due, fn: fn, owner: w}
	w.enqueue(a)
	return a
}

func (w *worker) Dispose() { w.life.Dispose() }

func (w *worker) IsDisposed() bool { return w.life.IsDisposed() }

func (w *worker) cancelled() {
	if obs := w.opts.Observer; obs != nil {
		obs.ActionCancelled(w.ctx, w.kind)
	}
}

// run executes a unless it was cancelled. The disposed check happens
// immediately before execution.
func (w *worker) run(a *action) {
	obs := w.opts.Observer
	if a.IsDisposed() {
		w.cancelled()
		return
	}
	var start time.Time
	if obs != nil {
		start = w.opts.Clock()
		obs.ActionStarted(w.ctx, w.kind, start.Sub(a.due))
	}
	err := exec(a.fn)
	a.Dispose()
	if err != nil {
		w.opts.ErrorHook(err)
	}
	if obs != nil {
		obs.ActionFinished(w.ctx, w.kind, w.opts.Clock().Sub(start), err)
	}
}

func exec(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()
	fn()
	return nil
}
