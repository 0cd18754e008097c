package subscription

import (
	"sync"
	"sync/atomic"
)

// Subscription is a cancellation token. Dispose is idempotent.
type Subscription interface {
	Dispose()
	IsDisposed() bool
}

// Composite is a Subscription that owns child subscriptions. Disposing it
// disposes every child; a child added after disposal is disposed at once.
type Composite struct {
	mu       sync.Mutex
	disposed atomic.Bool
	children []Subscription
	done     chan struct{}
}

// NewComposite returns an active Composite holding subs.
func NewComposite(subs ...Subscription) *Composite {
	c := &Composite{done: make(chan struct{})}
	for _, s := range subs {
		c.Add(s)
	}
	return c
}

// Add attaches s to c. If c is already disposed, s is disposed before Add
// returns.
func (c *Composite) Add(s Subscription) {
	if s == nil || Subscription(c) == s {
		return
	}
	c.mu.Lock()
	if c.disposed.Load() {
		c.mu.Unlock()
		s.Dispose()
		return
	}
	c.children = append(c.children, s)
	c.mu.Unlock()
}

// Remove detaches s from c without disposing it.
func (c *Composite) Remove(s Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, child := range c.children {
		if child == s {
			c.children = append(c.children[:i], c.children[i+1:]...)
			return
		}
	}
}

// Len returns the number of attached children.
func (c *Composite) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.children)
}

// Dispose disposes every child once. Later calls are no-ops.
func (c *Composite) Dispose() {
	c.mu.Lock()
	if c.disposed.Load() {
		c.mu.Unlock()
		return
	}
	c.disposed.Store(true)
	children := c.children
	c.children = nil
	close(c.done)
	c.mu.Unlock()

	for _, child := range children {
		child.Dispose()
	}
}

// IsDisposed reports whether c was disposed.
func (c *Composite) IsDisposed() bool { return c.disposed.Load() }

// Done returns a channel that is closed when c is disposed.
func (c *Composite) Done() <-chan struct{} { return c.done }

type funcSub struct {
	once     sync.Once
	disposed atomic.Bool
	fn       func()
}

// Func returns a Subscription that runs fn once, on the first Dispose.
func Func(fn func()) Subscription {
	return &funcSub{fn: fn}
}

func (f *funcSub) Dispose() {
	f.once.Do(func() {
		f.disposed.Store(true)
		if f.fn != nil {
			f.fn()
		}
	})
}

func (f *funcSub) IsDisposed() bool { return f.disposed.Load() }

// Empty returns an active Subscription with no teardown.
func Empty() Subscription { return Func(nil) }

// Disposed returns a Subscription that is already disposed.
func Disposed() Subscription {
	s := Func(nil)
	s.Dispose()
	return s
}
