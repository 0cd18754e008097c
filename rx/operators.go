package rx

import "sync/atomic"

// Map transforms every item with fn.
func Map[T, U any](o Observable[T], fn func(T) U) Observable[U] {
	if fn == nil {
		panic("rx: nil Map function")
	}
	return Create(func(d *Subscriber[U]) {
		up := newSubscriber(ObserverFunc(
			func(v T) { d.OnNext(fn(v)) },
			d.OnError,
			d.OnCompleted,
		), d.lifetime())
		o.SubscribeWith(up)
	})
}

// Take emits the first n items, then completes and disposes the upstream
// subscription.
func (o Observable[T]) Take(n int) Observable[T] {
	if n < 0 {
		panic("rx: negative Take count")
	}
	return Create(func(d *Subscriber[T]) {
		if n == 0 {
			d.OnCompleted()
			return
		}
		var seen atomic.Int64
		up := newSubscriber(ObserverFunc(
			func(v T) {
				k := seen.Add(1)
				if k > int64(n) {
					return
				}
				d.OnNext(v)
				if k == int64(n) {
					d.OnCompleted()
				}
			},
			d.OnError,
			d.OnCompleted,
		), d.lifetime())
		o.SubscribeWith(up)
	})
}
