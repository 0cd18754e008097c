package schedulers

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// action is one scheduled unit of work. It is its own cancellation token.
type action struct {
	due      time.Time
	seq      uint64
	fn       func()
	owner    *worker
	q        *timedQueue
	disposed atomic.Bool
	index    int
}

// Dispose cancels a. A still-queued action leaves its queue at once and is
// reported as cancelled; one already popped is reported by run.
func (a *action) Dispose() {
	if !a.disposed.CompareAndSwap(false, true) {
		return
	}
	if a.q != nil && a.q.remove(a) {
		a.owner.cancelled()
	}
}

func (a *action) IsDisposed() bool {
	return a.disposed.Load() || a.owner.IsDisposed()
}

// actionHeap orders by due time, then by submission sequence.
type actionHeap []*action

func (h actionHeap) Len() int { return len(h) }

func (h actionHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}

func (h actionHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *actionHeap) Push(x any) {
	a := x.(*action)
	a.index = len(*h)
	*h = append(*h, a)
}

func (h *actionHeap) Pop() any {
	old := *h
	n := len(old)
	a := old[n-1]
	old[n-1] = nil
	a.index = -1
	*h = old[:n-1]
	return a
}

// timedQueue is a thread-safe, wake-on-enqueue priority queue of actions.
// Disposed actions are removed eagerly, so the heap only holds live work
// plus actions whose worker died without purging them.
type timedQueue struct {
	mu   sync.Mutex
	h    actionHeap
	seq  uint64
	wake chan struct{}
}

func newTimedQueue() *timedQueue {
	return &timedQueue{wake: make(chan struct{}, 1)}
}

// push enqueues a and reports whether it became the earliest pending action.
func (q *timedQueue) push(a *action) bool {
	a.q = q
	q.mu.Lock()
	a.seq = q.seq
	q.seq++
	heap.Push(&q.h, a)
	earliest := q.h[0] == a
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return earliest
}

// next pops the head if it is due or already cancelled. Otherwise it
// returns how long until the head is due; pending is false when the queue
// is empty.
func (q *timedQueue) next(now time.Time) (a *action, wait time.Duration, pending bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return nil, 0, false
	}
	head := q.h[0]
	if head.IsDisposed() || !head.due.After(now) {
		return heap.Pop(&q.h).(*action), 0, true
	}
	return nil, head.due.Sub(now), true
}

// remove takes a out of the heap and reports whether it was still queued.
func (q *timedQueue) remove(a *action) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if a.index < 0 || a.index >= len(q.h) || q.h[a.index] != a {
		return false
	}
	heap.Remove(&q.h, a.index)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// purge drops every action owned by w and returns how many it dropped.
func (q *timedQueue) purge(w *worker) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.h[:0]
	n := 0
	for _, a := range q.h {
		if a.owner == w {
			a.index = -1
			n++
			continue
		}
		a.index = len(kept)
		kept = append(kept, a)
	}
	clear(q.h[len(kept):])
	q.h = kept
	heap.Init(&q.h)
	return n
}

func (q *timedQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

// wait blocks until the queue is signalled, wait elapses (when pending) or
// ctx is done. It reports false when ctx is done.
func (q *timedQueue) wait(ctx context.Context, wait time.Duration, pending bool) bool {
	var timerC <-chan time.Time
	if pending {
		t := time.NewTimer(wait)
		defer t.Stop()
		timerC = t.C
	}
	select {
	case <-ctx.Done():
		return false
	case <-q.wake:
	case <-timerC:
	}
	return true
}

// loop drains q on the calling goroutine until ctx is done.
func (q *timedQueue) loop(ctx context.Context, now func() time.Time) {
	for {
		if ctx.Err() != nil {
			return
		}
		a, wait, pending := q.next(now())
		if a != nil {
			a.owner.run(a)
			continue
		}
		if !q.wait(ctx, wait, pending) {
			return
		}
	}
}
