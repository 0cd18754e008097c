package rx

import (
	"sync"

	"github.com/NetPo4ki/go-rx/coordination"
	"github.com/NetPo4ki/go-rx/subscription"
)

// multicaster is the shared sink a Connectable feeds.
type multicaster[T any] interface {
	Observer[T]
	terminated() bool
}

// Connectable is a multicast Observable whose upstream subscription is
// deferred until Connect. Subscribing only registers interest.
type Connectable[T any] struct {
	Observable[T]
	source Observable[T]
	sink   multicaster[T]

	mu   sync.Mutex
	conn *Subscriber[T]
}

func newConnectable[T any](source, shared Observable[T], sink multicaster[T]) *Connectable[T] {
	return &Connectable[T]{Observable: shared, source: source, sink: sink}
}

// Publish shares one upstream subscription among all subscribers through a
// Subject.
func (o Observable[T]) Publish() *Connectable[T] {
	subj := NewSubject[T]()
	return newConnectable(o, subj.Observable(), subj)
}

// Replay is like Publish but retains the last size items. Late subscribers
// receive the retained items, then live ones, delivered through coord. A
// nil coord delivers on the pushing goroutine.
func (o Observable[T]) Replay(size int, coord coordination.Coordination) *Connectable[T] {
	if size < 0 {
		panic("rx: negative Replay size")
	}
	return o.replay(size, coord)
}

// ReplayAll retains every item.
func (o Observable[T]) ReplayAll(coord coordination.Coordination) *Connectable[T] {
	return o.replay(-1, coord)
}

func (o Observable[T]) replay(size int, coord coordination.Coordination) *Connectable[T] {
	rs := newReplaySubject[T](size)
	shared := rs.Observable()
	if coord != nil {
		shared = shared.ObserveOn(coord)
	}
	return newConnectable(o, shared, rs)
}

// Connect subscribes the shared sink to the source. While a connection is
// active, or after the source has terminated, it returns the existing
// connection. Once a live connection is disposed, Connect starts a new
// one.
func (c *Connectable[T]) Connect() subscription.Subscription {
	c.mu.Lock()
	if c.conn != nil && (!c.conn.IsDisposed() || c.sink.terminated()) {
		conn := c.conn
		c.mu.Unlock()
		return conn
	}
	conn := NewSubscriber[T](c.sink)
	c.conn = conn
	c.mu.Unlock()

	c.source.SubscribeWith(conn)
	return conn
}

// RefCount connects when the first subscriber arrives and disposes the
// connection when the last one leaves.
func (c *Connectable[T]) RefCount() Observable[T] {
	var mu sync.Mutex
	var refs int
	var conn subscription.Subscription
	return Create(func(d *Subscriber[T]) {
		mu.Lock()
		refs++
		first := refs == 1
		mu.Unlock()

		d.Add(subscription.Func(func() {
			mu.Lock()
			refs--
			var last subscription.Subscription
			if refs == 0 {
				last, conn = conn, nil
			}
			mu.Unlock()
			if last != nil {
				last.Dispose()
			}
		}))

		c.Observable.SubscribeWith(d)
		if !first {
			return
		}
		cn := c.Connect()
		mu.Lock()
		if refs > 0 {
			conn = cn
			mu.Unlock()
			return
		}
		mu.Unlock()
		cn.Dispose()
	})
}
