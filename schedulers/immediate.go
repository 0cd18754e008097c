package schedulers

import "time"

// Immediate runs every action inline on the goroutine that schedules it,
// sleeping first when the action is not yet due.
type Immediate struct {
	opts Options
}

// NewImmediate returns an Immediate scheduler configured by optFns.
func NewImmediate(optFns ...Option) *Immediate {
	return &Immediate{opts: buildOptions(optFns)}
}

// Now returns the configured clock reading.
func (s *Immediate) Now() time.Time { return s.opts.Clock() }

// Kind returns KindImmediate.
func (s *Immediate) Kind() Kind { return KindImmediate }

// CreateWorker returns a worker that runs each action on its caller.
func (s *Immediate) CreateWorker() Worker {
	w := newWorker(KindImmediate, &s.opts, s.opts.Context)
	w.enqueue = func(a *action) {
		if d := a.due.Sub(s.opts.Clock()); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-t.C:
			case <-w.ctx.Done():
			}
			t.Stop()
		}
		w.run(a)
	}
	return w
}
