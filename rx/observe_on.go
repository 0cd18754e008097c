package rx

import (
	"sync"

	"github.com/NetPo4ki/go-rx/coordination"
	"github.com/NetPo4ki/go-rx/subscription"
)

// ObserveOn delivers notifications through a coordinator created from
// coord for each subscription. Item order within one subscription is
// preserved and exactly one terminal notification is delivered.
func (o Observable[T]) ObserveOn(coord coordination.Coordination) Observable[T] {
	if coord == nil {
		panic("rx: nil coordination")
	}
	return Create(func(d *Subscriber[T]) {
		c := coord.CreateCoordinator()
		d.Add(c)

		var deliver func(Notification[T])
		if c.Batched() {
			q := &notificationQueue[T]{c: c, dest: d}
			deliver = q.push
		} else {
			deliver = func(n Notification[T]) {
				c.Schedule(func() { n.Accept(d) })
			}
		}

		// The upstream side has its own lifetime: its terminal must stop the
		// producer without cancelling deliveries still queued on c.
		upLife := subscription.NewComposite()
		d.Add(upLife)
		up := newSubscriber(ObserverFunc(
			func(v T) { deliver(Next(v)) },
			func(err error) { deliver(Error[T](err)) },
			func() { deliver(Completed[T]()) },
		), upLife)
		o.SubscribeWith(up)
	})
}

// notificationQueue batches notifications so one scheduled action drains
// everything queued since the last wake-up. Nothing is queued after a
// terminal notification.
type notificationQueue[T any] struct {
	c    *coordination.Coordinator
	dest *Subscriber[T]

	mu       sync.Mutex
	items    []Notification[T]
	draining bool
	closed   bool
}

func (q *notificationQueue[T]) push(n Notification[T]) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = n.Terminal()
	q.items = append(q.items, n)
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()
	q.c.Schedule(q.drain)
}

func (q *notificationQueue[T]) drain() {
	for {
		q.mu.Lock()
		batch := q.items
		q.items = nil
		if len(batch) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()
		for _, n := range batch {
			n.Accept(q.dest)
		}
	}
}

// SubscribeOn performs the upstream subscription on a worker of coord.
func (o Observable[T]) SubscribeOn(coord coordination.Coordination) Observable[T] {
	if coord == nil {
		panic("rx: nil coordination")
	}
	return Create(func(d *Subscriber[T]) {
		c := coord.CreateCoordinator()
		d.Add(c)
		c.Schedule(func() { o.SubscribeWith(d) })
	})
}
