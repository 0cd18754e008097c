package schedulers

import (
	"sync/atomic"
	"time"
)

// CurrentThread hands out trampolining workers. Each worker owns its queue.
// The first Schedule made while that worker is idle drains the queue on the
// calling goroutine, waiting for due times, before it returns. Schedules made
// while the worker is draining, including re-entrant ones from inside a
// running action, only enqueue, so recursion never grows the stack.
//
// Workers do not share state: a goroutine scheduling on its own worker is
// never held up by another goroutine draining a different worker of the
// same CurrentThread.
type CurrentThread struct {
	opts Options
}

// NewCurrentThread returns a CurrentThread scheduler configured by optFns.
func NewCurrentThread(optFns ...Option) *CurrentThread {
	return &CurrentThread{opts: buildOptions(optFns)}
}

// Now returns the configured clock reading.
func (s *CurrentThread) Now() time.Time { return s.opts.Clock() }

// Kind returns KindCurrentThread.
func (s *CurrentThread) Kind() Kind { return KindCurrentThread }

// CreateWorker returns a *TrampolineWorker with its own queue.
func (s *CurrentThread) CreateWorker() Worker {
	w := newWorker(KindCurrentThread, &s.opts, s.opts.Context)
	t := &trampoline{q: newTimedQueue(), w: w}
	w.enqueue = func(a *action) {
		t.q.push(a)
		t.drain()
	}
	return &TrampolineWorker{worker: w, t: t}
}

// TrampolineWorker is the Worker returned by CurrentThread.
type TrampolineWorker struct {
	*worker
	t *trampoline
}

// IsScheduleRequired reports whether the worker is idle, i.e. whether a
// Schedule call made now would drain the queue on the calling goroutine.
func (w *TrampolineWorker) IsScheduleRequired() bool { return !w.t.draining.Load() }

type trampoline struct {
	q        *timedQueue
	w        *worker
	draining atomic.Bool
}

func (t *trampoline) drain() {
	for t.draining.CompareAndSwap(false, true) {
		for {
			a, wait, pending := t.q.next(t.w.opts.Clock())
			if a != nil {
				a.owner.run(a)
				continue
			}
			if !pending {
				break
			}
			if !t.q.wait(t.w.ctx, wait, pending) {
				t.draining.Store(false)
				return
			}
		}
		t.draining.Store(false)
		// An enqueue that raced with the release above saw draining set
		// and returned; pick its action up here.
		if t.q.len() == 0 {
			return
		}
	}
}
