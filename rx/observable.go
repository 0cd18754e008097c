package rx

import (
	"time"

	"github.com/NetPo4ki/go-rx/coordination"
)

// Observable is a lazy source of notifications. Each subscription runs the
// producer function once with its own Subscriber.
type Observable[T any] struct {
	subscribe func(s *Subscriber[T])
}

// Create builds an Observable from a producer. The producer should stop
// emitting once s.IsDisposed reports true.
func Create[T any](fn func(s *Subscriber[T])) Observable[T] {
	if fn == nil {
		panic("rx: nil producer")
	}
	return Observable[T]{subscribe: fn}
}

// SubscribeWith runs the producer against s and returns it. The zero
// Observable completes at once.
func (o Observable[T]) SubscribeWith(s *Subscriber[T]) *Subscriber[T] {
	if s.IsDisposed() {
		return s
	}
	if o.subscribe == nil {
		s.OnCompleted()
		return s
	}
	o.subscribe(s)
	return s
}

// Subscribe wraps obs in a Subscriber and subscribes it to o.
func (o Observable[T]) Subscribe(obs Observer[T]) *Subscriber[T] {
	return o.SubscribeWith(NewSubscriber(obs))
}

// SubscribeFunc subscribes with callbacks; nil callbacks are ignored.
func (o Observable[T]) SubscribeFunc(onNext func(T), onError func(error), onCompleted func()) *Subscriber[T] {
	return o.Subscribe(ObserverFunc(onNext, onError, onCompleted))
}

// Just emits vals in order, then completes.
func Just[T any](vals ...T) Observable[T] {
	return Create(func(s *Subscriber[T]) {
		for _, v := range vals {
			if s.IsDisposed() {
				return
			}
			s.OnNext(v)
		}
		s.OnCompleted()
	})
}

// Empty completes without emitting.
func Empty[T any]() Observable[T] {
	return Create(func(s *Subscriber[T]) { s.OnCompleted() })
}

// Throw fails with err without emitting.
func Throw[T any](err error) Observable[T] {
	return Create(func(s *Subscriber[T]) { s.OnError(err) })
}

// Range emits start, start+1, ... start+count-1 on the subscribing
// goroutine and then completes.
func Range(start, count int) Observable[int] {
	if count < 0 {
		panic("rx: negative Range count")
	}
	return Create(func(s *Subscriber[int]) {
		for i := 0; i < count; i++ {
			if s.IsDisposed() {
				return
			}
			s.OnNext(start + i)
		}
		s.OnCompleted()
	})
}

// Interval emits 1, 2, 3, ... every period, starting one period from now,
// on a worker of coord.
func Interval(period time.Duration, coord coordination.Coordination) Observable[int64] {
	return Create(func(s *Subscriber[int64]) {
		intervalAt(s, coord.Now().Add(period), period, coord)
	})
}

// IntervalAt is like Interval but the first value is emitted at start.
// Later values are due at start+n*period regardless of how long delivery
// took, so the schedule does not drift.
func IntervalAt(start time.Time, period time.Duration, coord coordination.Coordination) Observable[int64] {
	return Create(func(s *Subscriber[int64]) {
		intervalAt(s, start, period, coord)
	})
}

func intervalAt(s *Subscriber[int64], start time.Time, period time.Duration, coord coordination.Coordination) {
	if period <= 0 {
		panic("rx: non-positive Interval period")
	}
	c := coord.CreateCoordinator()
	s.Add(c)
	var n int64
	var tick func()
	tick = func() {
		n++
		s.OnNext(n)
		if !s.IsDisposed() {
			c.ScheduleAt(start.Add(time.Duration(n)*period), tick)
		}
	}
	c.ScheduleAt(start, tick)
}
