package rx

import (
	"sync/atomic"

	"github.com/NetPo4ki/go-rx/subscription"
)

// Subscriber couples an Observer with the lifetime of one subscription. It
// delivers at most one terminal notification, nothing after it, and
// disposes its lifetime once the terminal has been delivered.
type Subscriber[T any] struct {
	observer Observer[T]
	life     *subscription.Composite
	stopped  atomic.Bool
}

// NewSubscriber wraps o with a fresh lifetime.
func NewSubscriber[T any](o Observer[T]) *Subscriber[T] {
	return newSubscriber(o, subscription.NewComposite())
}

func newSubscriber[T any](o Observer[T], life *subscription.Composite) *Subscriber[T] {
	if o == nil {
		panic("rx: nil observer")
	}
	return &Subscriber[T]{observer: o, life: life}
}

// OnNext forwards v unless s has stopped.
func (s *Subscriber[T]) OnNext(v T) {
	if s.stopped.Load() || s.life.IsDisposed() {
		return
	}
	s.observer.OnNext(v)
}

// OnError forwards err once, then disposes s.
func (s *Subscriber[T]) OnError(err error) {
	if s.life.IsDisposed() || !s.stopped.CompareAndSwap(false, true) {
		return
	}
	defer s.life.Dispose()
	s.observer.OnError(err)
}

// OnCompleted forwards completion once, then disposes s.
func (s *Subscriber[T]) OnCompleted() {
	if s.life.IsDisposed() || !s.stopped.CompareAndSwap(false, true) {
		return
	}
	defer s.life.Dispose()
	s.observer.OnCompleted()
}

// Add ties sub to this subscription's lifetime.
func (s *Subscriber[T]) Add(sub subscription.Subscription) { s.life.Add(sub) }

// Remove detaches sub from s without disposing it.
func (s *Subscriber[T]) Remove(sub subscription.Subscription) { s.life.Remove(sub) }

// Dispose stops s and tears down everything added to it.
func (s *Subscriber[T]) Dispose() { s.life.Dispose() }

// IsDisposed reports whether s was disposed.
func (s *Subscriber[T]) IsDisposed() bool { return s.life.IsDisposed() }

// Done is closed once the subscription is disposed, whether by a terminal
// notification or by Dispose.
func (s *Subscriber[T]) Done() <-chan struct{} { return s.life.Done() }

// lifetime exposes the composite so operators can share it upstream.
func (s *Subscriber[T]) lifetime() *subscription.Composite { return s.life }
