// Package coordination decides which Worker mediates a pipeline boundary
// and how notifications from concurrent producers interleave there.
//
// A Coordination is an immutable policy. CreateCoordinator binds it to a
// Worker; the returned Coordinator is reused for every notification it
// mediates and is released with Dispose.
//
//   - identity: deliver on the caller (immediate) or on the caller's
//     trampoline (current-thread).
//   - synchronize: one Worker per Coordinator, one action per call, FIFO.
//   - serialize: every Coordinator of one Coordination shares one Worker and
//     one lock, so deliveries from all producers form a single total order
//     and never overlap in time.
//   - observe-on: one Worker per Coordinator; queued notifications are
//     drained in batches.
package coordination

import (
	"sync"
	"time"

	"github.com/NetPo4ki/go-rx/schedulers"
	"github.com/NetPo4ki/go-rx/subscription"
)

// Family identifies a coordination policy.
type Family int

const (
	Identity Family = iota
	Synchronize
	Serialize
	ObserveOn
)

// String returns the family name in snake case.
func (f Family) String() string {
	switch f {
	case Identity:
		return "identity"
	case Synchronize:
		return "synchronize"
	case Serialize:
		return "serialize"
	case ObserveOn:
		return "observe_on"
	}
	return "unknown"
}

// Coordination is a delivery policy bound to a scheduler. Each call to
// CreateCoordinator returns a new Coordinator for one subscription.
type Coordination interface {
	Now() time.Time
	Family() Family
	CreateCoordinator() *Coordinator
}

// Coordinator is a Coordination bound to one Worker.
type Coordinator struct {
	family Family
	worker schedulers.Worker
	lock   *sync.Mutex
	life   *subscription.Composite
}

func newCoordinator(family Family, w schedulers.Worker, lock *sync.Mutex, release subscription.Subscription) *Coordinator {
	return &Coordinator{
		family: family,
		worker: w,
		lock:   lock,
		life:   subscription.NewComposite(release),
	}
}

// Worker returns the worker deliveries run on.
func (c *Coordinator) Worker() schedulers.Worker { return c.worker }

// Family returns the policy c was created from.
func (c *Coordinator) Family() Family { return c.family }

// Now returns the worker's clock reading.
func (c *Coordinator) Now() time.Time { return c.worker.Now() }

// Batched reports whether callers should queue notifications and drain
// them in one action per wake-up rather than scheduling one action each.
func (c *Coordinator) Batched() bool { return c.family == ObserveOn }

// Schedule runs fn through the coordinator's worker. It is skipped if the
// coordinator is disposed before fn starts.
func (c *Coordinator) Schedule(fn func()) subscription.Subscription {
	return c.worker.Schedule(c.wrap(fn))
}

// ScheduleAt is Schedule with a due time.
func (c *Coordinator) ScheduleAt(due time.Time, fn func()) subscription.Subscription {
	return c.worker.ScheduleAt(due, c.wrap(fn))
}

func (c *Coordinator) wrap(fn func()) func() {
	return func() {
		if c.life.IsDisposed() {
			return
		}
		if c.lock != nil {
			c.lock.Lock()
			defer c.lock.Unlock()
		}
		fn()
	}
}

// Dispose cancels pending deliveries and releases the worker.
func (c *Coordinator) Dispose() { c.life.Dispose() }

// IsDisposed reports whether Dispose was called.
func (c *Coordinator) IsDisposed() bool { return c.life.IsDisposed() }

// oneWorker gives each coordinator a worker of its own.
type oneWorker struct {
	family Family
	sched  schedulers.Scheduler
}

func (o oneWorker) Now() time.Time { return o.sched.Now() }

func (o oneWorker) Family() Family { return o.family }

func (o oneWorker) CreateCoordinator() *Coordinator {
	w := o.sched.CreateWorker()
	return newCoordinator(o.family, w, nil, w)
}

// serialized shares one reference-counted worker and one lock between all
// of its coordinators.
type serialized struct {
	sched schedulers.Scheduler
	lock  sync.Mutex

	mu     sync.Mutex
	worker schedulers.Worker
	refs   int
}

func (s *serialized) Now() time.Time { return s.sched.Now() }

func (s *serialized) Family() Family { return Serialize }

func (s *serialized) CreateCoordinator() *Coordinator {
	s.mu.Lock()
	if s.worker == nil || s.worker.IsDisposed() {
		s.worker = s.sched.CreateWorker()
		s.refs = 0
	}
	w := s.worker
	s.refs++
	s.mu.Unlock()

	release := subscription.Func(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.worker != w {
			return
		}
		s.refs--
		if s.refs == 0 {
			w.Dispose()
			s.worker = nil
		}
	})
	return newCoordinator(Serialize, w, &s.lock, release)
}

// New returns a Coordination of the given family over sched.
func New(family Family, sched schedulers.Scheduler) Coordination {
	if family == Serialize {
		return &serialized{sched: sched}
	}
	return oneWorker{family: family, sched: sched}
}
