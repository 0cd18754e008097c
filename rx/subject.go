package rx

import (
	"sync"
	"sync/atomic"

	"github.com/NetPo4ki/go-rx/subscription"
)

type subjectState int32

const (
	subjectLive subjectState = iota
	subjectCompleted
	subjectErrored
)

// Subject is both an Observer and a multicast Observable. Every push is
// delivered on the pushing goroutine to the observers attached when the
// push began. Once terminated, new observers receive only the terminal
// notification.
type Subject[T any] struct {
	mu        sync.Mutex
	state     atomic.Int32
	err       error
	observers atomic.Pointer[[]*Subscriber[T]]
}

// NewSubject returns a Subject with no subscribers.
func NewSubject[T any]() *Subject[T] {
	s := &Subject[T]{}
	s.observers.Store(&[]*Subscriber[T]{})
	return s
}

// Observable is the read half.
func (s *Subject[T]) Observable() Observable[T] { return Create(s.add) }

// Subscriber is the write half.
func (s *Subject[T]) Subscriber() Observer[T] { return s }

// HasObservers reports whether any observer is attached.
func (s *Subject[T]) HasObservers() bool { return len(s.snapshot()) > 0 }

func (s *Subject[T]) snapshot() []*Subscriber[T] {
	if p := s.observers.Load(); p != nil {
		return *p
	}
	return nil
}

func (s *Subject[T]) add(d *Subscriber[T]) {
	s.mu.Lock()
	switch subjectState(s.state.Load()) {
	case subjectCompleted:
		s.mu.Unlock()
		d.OnCompleted()
		return
	case subjectErrored:
		err := s.err
		s.mu.Unlock()
		d.OnError(err)
		return
	}
	old := s.snapshot()
	next := make([]*Subscriber[T], len(old), len(old)+1)
	copy(next, old)
	next = append(next, d)
	s.observers.Store(&next)
	s.mu.Unlock()

	d.Add(subscription.Func(func() { s.remove(d) }))
}

func (s *Subject[T]) remove(d *Subscriber[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.snapshot()
	for i, o := range old {
		if o == d {
			next := make([]*Subscriber[T], 0, len(old)-1)
			next = append(next, old[:i]...)
			next = append(next, old[i+1:]...)
			s.observers.Store(&next)
			return
		}
	}
}

// OnNext forwards v to every current subscriber.
func (s *Subject[T]) OnNext(v T) {
	if subjectState(s.state.Load()) != subjectLive {
		return
	}
	for _, o := range s.snapshot() {
		o.OnNext(v)
	}
}

// OnError terminates the subject and every subscriber with err.
func (s *Subject[T]) OnError(err error) {
	for _, o := range s.terminate(subjectErrored, err) {
		o.OnError(err)
	}
}

// OnCompleted terminates the subject and every subscriber.
func (s *Subject[T]) OnCompleted() {
	for _, o := range s.terminate(subjectCompleted, nil) {
		o.OnCompleted()
	}
}

// terminate freezes the terminal state and detaches every observer. It
// returns the observers to notify, or nil if already terminated.
func (s *Subject[T]) terminate(state subjectState, err error) []*Subscriber[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if subjectState(s.state.Load()) != subjectLive {
		return nil
	}
	s.err = err
	s.state.Store(int32(state))
	obs := s.snapshot()
	s.observers.Store(&[]*Subscriber[T]{})
	return obs
}

func (s *Subject[T]) terminated() bool {
	return subjectState(s.state.Load()) != subjectLive
}
