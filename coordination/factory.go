package coordination

import (
	"sync"

	"github.com/NetPo4ki/go-rx/schedulers"
)

// Factory is the explicit configuration object that owns the schedulers
// behind the coordinations it hands out. Applications construct one and
// pass it where needed; nothing is process-global.
type Factory struct {
	opts          []schedulers.Option
	immediate     *schedulers.Immediate
	currentThread *schedulers.CurrentThread
	newThread     *schedulers.NewThread

	mu        sync.Mutex
	eventLoop *schedulers.EventLoop
}

// NewFactory builds a Factory whose schedulers share opts. The event loop
// is started on first use; Close stops it.
//
// Every accessor returns a fresh Coordination. Serialize coordinations only
// order deliveries against coordinators created from the same value.
func NewFactory(opts ...schedulers.Option) *Factory {
	return &Factory{
		opts:          opts,
		immediate:     schedulers.NewImmediate(opts...),
		currentThread: schedulers.NewCurrentThread(opts...),
		newThread:     schedulers.NewNewThread(opts...),
	}
}

// CurrentThread returns the factory's current-thread scheduler.
func (f *Factory) CurrentThread() *schedulers.CurrentThread { return f.currentThread }

// NewThread returns the factory's new-thread scheduler.
func (f *Factory) NewThread() *schedulers.NewThread { return f.newThread }

// EventLoop returns the factory's event loop, starting it on first use.
func (f *Factory) EventLoop() *schedulers.EventLoop {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eventLoop == nil {
		f.eventLoop = schedulers.NewEventLoop(f.opts...)
	}
	return f.eventLoop
}

// Close stops the event loop if it was started.
func (f *Factory) Close() error {
	f.mu.Lock()
	el := f.eventLoop
	f.mu.Unlock()
	if el == nil {
		return nil
	}
	return el.Close()
}

// IdentityImmediate delivers synchronously on the caller.
func (f *Factory) IdentityImmediate() Coordination { return New(Identity, f.immediate) }

// IdentityCurrentThread queues deliveries on a trampoline owned by each
// coordinator and drains them on the calling goroutine.
func (f *Factory) IdentityCurrentThread() Coordination { return New(Identity, f.currentThread) }

// SynchronizeNewThread funnels each coordinator through its own goroutine.
func (f *Factory) SynchronizeNewThread() Coordination { return New(Synchronize, f.newThread) }

// SynchronizeEventLoop funnels each coordinator through one event-loop worker.
func (f *Factory) SynchronizeEventLoop() Coordination { return New(Synchronize, f.EventLoop()) }

// SerializeNewThread orders deliveries of all its coordinators on one
// shared new-thread worker.
func (f *Factory) SerializeNewThread() Coordination { return New(Serialize, f.newThread) }

// SerializeEventLoop is SerializeNewThread backed by the event loop.
func (f *Factory) SerializeEventLoop() Coordination { return New(Serialize, f.EventLoop()) }

// ObserveOnNewThread batches deliveries onto a new goroutine per coordinator.
func (f *Factory) ObserveOnNewThread() Coordination { return New(ObserveOn, f.newThread) }

// ObserveOnEventLoop batches deliveries onto an event-loop worker.
func (f *Factory) ObserveOnEventLoop() Coordination { return New(ObserveOn, f.EventLoop()) }

// ObserveOnRunLoop delivers on rl; notifications run when its owner calls
// Dispatch.
func (f *Factory) ObserveOnRunLoop(rl *schedulers.RunLoop) Coordination {
	return New(ObserveOn, rl)
}
