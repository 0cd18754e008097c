package schedulers

import "time"

// NewThread gives every worker its own goroutine. The goroutine starts in
// CreateWorker and exits when the worker is disposed or the base context
// is cancelled.
type NewThread struct {
	opts Options
}

// NewNewThread returns a NewThread scheduler configured by optFns.
func NewNewThread(optFns ...Option) *NewThread {
	return &NewThread{opts: buildOptions(optFns)}
}

// Now returns the configured clock reading.
func (s *NewThread) Now() time.Time { return s.opts.Clock() }

// Kind returns KindNewThread.
func (s *NewThread) Kind() Kind { return KindNewThread }

// CreateWorker starts the goroutine backing the new worker.
func (s *NewThread) CreateWorker() Worker {
	w := newWorker(KindNewThread, &s.opts, s.opts.Context)
	q := newTimedQueue()
	w.enqueue = func(a *action) { q.push(a) }
	go q.loop(w.ctx, s.opts.Clock)
	return w
}
