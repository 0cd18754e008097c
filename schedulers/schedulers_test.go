package schedulers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder collects values appended from any goroutine.
type recorder struct {
	mu   sync.Mutex
	vals []int
}

func (r *recorder) add(v int) {
	r.mu.Lock()
	r.vals = append(r.vals, v)
	r.mu.Unlock()
}

func (r *recorder) get() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.vals...)
}

func threadBacked(t *testing.T) map[string]Scheduler {
	t.Helper()
	el := NewEventLoop(WithLoops(2))
	t.Cleanup(func() { _ = el.Close() })
	return map[string]Scheduler{
		"new_thread": NewNewThread(),
		"event_loop": el,
	}
}

func TestWorkerDueOrderAndFIFO(t *testing.T) {
	t.Parallel()
	for name, s := range threadBacked(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			w := s.CreateWorker()
			defer w.Dispose()
			rec := &recorder{}
			done := make(chan struct{})
			base := w.Now().Add(30 * time.Millisecond)
			w.ScheduleAt(base.Add(10*time.Millisecond), func() { rec.add(4); close(done) })
			w.ScheduleAt(base, func() { rec.add(1) })
			w.ScheduleAt(base, func() { rec.add(2) })
			w.ScheduleAt(base, func() { rec.add(3) })
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("actions did not run in time")
			}
			if diff := cmp.Diff([]int{1, 2, 3, 4}, rec.get()); diff != "" {
				t.Fatalf("dispatch order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWorkerNeverRunsEarly(t *testing.T) {
	t.Parallel()
	s := NewNewThread()
	w := s.CreateWorker()
	defer w.Dispose()
	due := w.Now().Add(40 * time.Millisecond)
	ran := make(chan time.Time, 1)
	w.ScheduleAt(due, func() { ran <- time.Now() })
	select {
	case at := <-ran:
		if at.Before(due) {
			t.Fatalf("action ran %v before its due time", due.Sub(at))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("action never ran")
	}
}

func TestDisposeBeforeDuePreventsEffect(t *testing.T) {
	t.Parallel()
	for name, s := range threadBacked(t) {
		s := s
		t.Run(name, func(t *testing.T) {
			w := s.CreateWorker()
			defer w.Dispose()
			var ran atomic.Bool
			sub := w.ScheduleAfter(30*time.Millisecond, func() { ran.Store(true) })
			marker := make(chan struct{})
			w.ScheduleAfter(60*time.Millisecond, func() { close(marker) })
			sub.Dispose()
			select {
			case <-marker:
			case <-time.After(2 * time.Second):
				t.Fatal("marker action never ran")
			}
			if ran.Load() {
				t.Fatal("cancelled action must not run")
			}
		})
	}
}

func TestPanicReachesHookAndWorkerContinues(t *testing.T) {
	t.Parallel()
	errs := make(chan error, 1)
	s := NewNewThread(WithErrorHook(func(err error) { errs <- err }))
	w := s.CreateWorker()
	defer w.Dispose()
	after := make(chan struct{})
	w.Schedule(func() { panic("boom") })
	w.Schedule(func() { close(after) })
	select {
	case <-after:
	case <-time.After(2 * time.Second):
		t.Fatal("worker stopped after a panicking action")
	}
	err := <-errs
	var pe *PanicError
	if !errors.As(err, &pe) || pe.Value != "boom" {
		t.Fatalf("expected *PanicError with value boom, got %v", err)
	}
}

func TestScheduleOnDisposedWorker(t *testing.T) {
	t.Parallel()
	w := NewNewThread().CreateWorker()
	w.Dispose()
	sub := w.Schedule(func() { t.Error("action ran on a disposed worker") })
	if !sub.IsDisposed() {
		t.Fatal("expected a disposed subscription from a disposed worker")
	}
}

func TestNewThreadWorkersRunConcurrently(t *testing.T) {
	t.Parallel()
	s := NewNewThread()
	w1, w2 := s.CreateWorker(), s.CreateWorker()
	defer w1.Dispose()
	defer w2.Dispose()
	block := make(chan struct{})
	done := make(chan struct{})
	w1.Schedule(func() { <-block })
	w2.Schedule(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second worker was blocked by the first")
	}
	close(block)
}

func TestImmediateRunsInline(t *testing.T) {
	t.Parallel()
	w := NewImmediate().CreateWorker()
	defer w.Dispose()
	var got []int
	w.Schedule(func() {
		got = append(got, 1)
		w.Schedule(func() { got = append(got, 2) })
		got = append(got, 3)
	})
	if diff := cmp.Diff([]int{1, 2, 3}, got); diff != "" {
		t.Fatalf("immediate must recurse inline (-want +got):\n%s", diff)
	}
	start := time.Now()
	w.ScheduleAfter(20*time.Millisecond, func() {})
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("immediate worker must wait for a delayed action")
	}
}

func TestCurrentThreadTrampoline(t *testing.T) {
	t.Parallel()
	s := NewCurrentThread()
	w := s.CreateWorker()
	defer w.Dispose()
	var got []int
	w.Schedule(func() {
		got = append(got, 1)
		w.Schedule(func() { got = append(got, 3) })
		got = append(got, 2)
	})
	if diff := cmp.Diff([]int{1, 2, 3}, got); diff != "" {
		t.Fatalf("nested schedule must be queued, not run inline (-want +got):\n%s", diff)
	}
	if !w.(*TrampolineWorker).IsScheduleRequired() {
		t.Fatal("trampoline still marked as draining after return")
	}
}

func TestCurrentThreadWorkersDrainIndependently(t *testing.T) {
	t.Parallel()
	s := NewCurrentThread()
	busy := s.CreateWorker()
	defer busy.Dispose()
	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		busy.Schedule(func() {
			close(entered)
			<-release
		})
	}()
	<-entered
	defer func() {
		close(release)
		<-done
	}()

	w := s.CreateWorker()
	defer w.Dispose()
	var got []int
	w.Schedule(func() {
		got = append(got, 1)
		w.Schedule(func() { got = append(got, 2) })
	})
	if diff := cmp.Diff([]int{1, 2}, got); diff != "" {
		t.Fatalf("worker must drain on its caller while another worker is busy (-want +got):\n%s", diff)
	}
	if busy.(*TrampolineWorker).IsScheduleRequired() {
		t.Fatal("busy worker should still be draining")
	}
}

func TestCurrentThreadConcurrentCallers(t *testing.T) {
	t.Parallel()
	s := NewCurrentThread()
	const callers, depth = 8, 1000
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := s.CreateWorker()
			defer w.Dispose()
			n := 0
			var step func()
			step = func() {
				n++
				if n < depth {
					w.Schedule(step)
				}
			}
			w.Schedule(step)
			if n != depth {
				t.Errorf("caller returned before its own actions ran: %d of %d", n, depth)
			}
		}()
	}
	wg.Wait()
}

func TestCurrentThreadDeepRecursion(t *testing.T) {
	t.Parallel()
	w := NewCurrentThread().CreateWorker()
	defer w.Dispose()
	const depth = 200000
	n := 0
	var step func()
	step = func() {
		n++
		if n < depth {
			w.Schedule(step)
		}
	}
	w.Schedule(step)
	if n != depth {
		t.Fatalf("expected %d iterations, got %d", depth, n)
	}
}

func TestEventLoopWorkerSequential(t *testing.T) {
	t.Parallel()
	el := NewEventLoop(WithLoops(3))
	defer func() { _ = el.Close() }()
	w := el.CreateWorker()
	defer w.Dispose()
	var inFlight, overlaps atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			w.Schedule(func() {
				defer wg.Done()
				if inFlight.Add(1) > 1 {
					overlaps.Add(1)
				}
				time.Sleep(50 * time.Microsecond)
				inFlight.Add(-1)
			})
		}()
	}
	wg.Wait()
	if got := overlaps.Load(); got != 0 {
		t.Fatalf("actions of one event-loop worker overlapped %d times", got)
	}
	if el.Size() != 3 {
		t.Fatalf("expected 3 loops, got %d", el.Size())
	}
}

func TestEventLoopClose(t *testing.T) {
	t.Parallel()
	el := NewEventLoop(WithLoops(2))
	if err := el.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	_ = el.Close()
	w := el.CreateWorker()
	if !w.IsDisposed() {
		t.Fatal("worker created after Close must be disposed")
	}
}

func TestBaseContextStopsNewThread(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	w := NewNewThread(WithContext(ctx)).CreateWorker()
	cancel()
	time.Sleep(10 * time.Millisecond)
	var ran atomic.Bool
	w.Schedule(func() { ran.Store(true) })
	time.Sleep(20 * time.Millisecond)
	if ran.Load() {
		t.Fatal("worker kept running after its base context was cancelled")
	}
	w.Dispose()
}

type countObserver struct {
	created   atomic.Int64
	released  atomic.Int64
	started   atomic.Int64
	finished  atomic.Int64
	panicked  atomic.Int64
	cancelled atomic.Int64
}

func (o *countObserver) WorkerCreated(context.Context, Kind)  { o.created.Add(1) }
func (o *countObserver) WorkerReleased(context.Context, Kind) { o.released.Add(1) }
func (o *countObserver) ActionStarted(context.Context, Kind, time.Duration) {
	o.started.Add(1)
}
func (o *countObserver) ActionFinished(_ context.Context, _ Kind, _ time.Duration, err error) {
	o.finished.Add(1)
	if err != nil {
		o.panicked.Add(1)
	}
}
func (o *countObserver) ActionCancelled(context.Context, Kind) { o.cancelled.Add(1) }

func TestObserverHooks(t *testing.T) {
	t.Parallel()
	obs := &countObserver{}
	s := NewCurrentThread(WithObserver(obs), WithErrorHook(func(error) {}))
	w := s.CreateWorker()
	w.Schedule(func() {})
	w.Schedule(func() { panic("x") })
	w.Schedule(func() {
		sub := w.Schedule(func() {})
		sub.Dispose()
	})
	w.Dispose()
	w.Dispose()
	if obs.created.Load() != 1 || obs.released.Load() != 1 {
		t.Fatalf("unexpected worker counts: created=%d released=%d", obs.created.Load(), obs.released.Load())
	}
	if obs.started.Load() != 3 || obs.finished.Load() != 3 || obs.panicked.Load() != 1 || obs.cancelled.Load() != 1 {
		t.Fatalf("unexpected action counts: started=%d finished=%d panicked=%d cancelled=%d",
			obs.started.Load(), obs.finished.Load(), obs.panicked.Load(), obs.cancelled.Load())
	}
}

func TestObserversFanOut(t *testing.T) {
	t.Parallel()
	a, b := &countObserver{}, &countObserver{}
	w := NewImmediate(WithObserver(Observers(a, b))).CreateWorker()
	w.Schedule(func() {})
	w.Dispose()
	for i, o := range []*countObserver{a, b} {
		if o.created.Load() != 1 || o.started.Load() != 1 || o.finished.Load() != 1 || o.released.Load() != 1 {
			t.Fatalf("observer %d missed events: created=%d started=%d finished=%d released=%d",
				i, o.created.Load(), o.started.Load(), o.finished.Load(), o.released.Load())
		}
	}
}
