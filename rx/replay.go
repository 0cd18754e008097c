package rx

import (
	"sync"
	"sync/atomic"

	"github.com/NetPo4ki/go-rx/subscription"
)

type replayNode[T any] struct {
	value T
	next  atomic.Pointer[replayNode[T]]
}

// replaySubject retains recent items in a singly linked list. Each
// subscriber keeps a pointer to the last node it received, so eviction
// only moves the head seen by new subscribers and never disturbs one that
// is still catching up.
type replaySubject[T any] struct {
	size int // negative means unbounded

	mu      sync.Mutex
	head    *replayNode[T] // sentinel; head.next is the oldest retained item
	tail    *replayNode[T]
	count   int
	done    bool
	err     error
	cursors []*replayCursor[T]
}

type replayCursor[T any] struct {
	dest *Subscriber[T]
	node *replayNode[T]

	mu       sync.Mutex
	emitting bool
	missed   bool
	finished bool
}

func newReplaySubject[T any](size int) *replaySubject[T] {
	sentinel := &replayNode[T]{}
	return &replaySubject[T]{size: size, head: sentinel, tail: sentinel}
}

func (r *replaySubject[T]) Observable() Observable[T] { return Create(r.add) }

func (r *replaySubject[T]) add(d *Subscriber[T]) {
	r.mu.Lock()
	c := &replayCursor[T]{dest: d, node: r.head}
	if !r.done {
		r.cursors = append(r.cursors, c)
	}
	r.mu.Unlock()

	d.Add(subscription.Func(func() { r.remove(c) }))
	r.replay(c)
}

func (r *replaySubject[T]) remove(c *replayCursor[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, x := range r.cursors {
		if x == c {
			r.cursors = append(r.cursors[:i:i], r.cursors[i+1:]...)
			return
		}
	}
}

func (r *replaySubject[T]) OnNext(v T) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	n := &replayNode[T]{value: v}
	r.tail.next.Store(n)
	r.tail = n
	r.count++
	if r.size >= 0 && r.count > r.size {
		r.head = r.head.next.Load()
		r.count--
	}
	cursors := r.cursors
	r.mu.Unlock()

	for _, c := range cursors {
		r.replay(c)
	}
}

func (r *replaySubject[T]) OnError(err error) { r.terminate(err) }

func (r *replaySubject[T]) OnCompleted() { r.terminate(nil) }

func (r *replaySubject[T]) terminate(err error) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	r.err = err
	cursors := r.cursors
	r.cursors = nil
	r.mu.Unlock()

	for _, c := range cursors {
		r.replay(c)
	}
}

func (r *replaySubject[T]) terminated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// replay delivers everything c has not seen yet. Only one goroutine emits
// to a cursor at a time; a concurrent caller marks the cursor missed and
// the emitting goroutine loops again.
func (r *replaySubject[T]) replay(c *replayCursor[T]) {
	c.mu.Lock()
	if c.emitting || c.finished {
		c.missed = true
		c.mu.Unlock()
		return
	}
	c.emitting = true
	c.mu.Unlock()

	for {
		for {
			if c.dest.IsDisposed() {
				return
			}
			next := c.node.next.Load()
			if next == nil {
				break
			}
			c.node = next
			c.dest.OnNext(next.value)
		}

		r.mu.Lock()
		done, err := r.done, r.err
		r.mu.Unlock()
		if done && c.node.next.Load() == nil {
			c.mu.Lock()
			c.finished = true
			c.mu.Unlock()
			if err != nil {
				c.dest.OnError(err)
			} else {
				c.dest.OnCompleted()
			}
			return
		}

		c.mu.Lock()
		if !c.missed {
			c.emitting = false
			c.mu.Unlock()
			return
		}
		c.missed = false
		c.mu.Unlock()
	}
}
