package coordination

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/NetPo4ki/go-rx/schedulers"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newFactory(t *testing.T) *Factory {
	t.Helper()
	f := NewFactory(schedulers.WithLoops(2))
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestFactoryFamilies(t *testing.T) {
	t.Parallel()
	f := newFactory(t)
	rl := schedulers.NewRunLoop()
	got := map[string]string{}
	for name, c := range map[string]Coordination{
		"identity_immediate":      f.IdentityImmediate(),
		"identity_current_thread": f.IdentityCurrentThread(),
		"synchronize_new_thread":  f.SynchronizeNewThread(),
		"synchronize_event_loop":  f.SynchronizeEventLoop(),
		"serialize_new_thread":    f.SerializeNewThread(),
		"serialize_event_loop":    f.SerializeEventLoop(),
		"observe_on_new_thread":   f.ObserveOnNewThread(),
		"observe_on_event_loop":   f.ObserveOnEventLoop(),
		"observe_on_run_loop":     f.ObserveOnRunLoop(rl),
	} {
		co := c.CreateCoordinator()
		got[name] = c.Family().String() + "/" + co.Family().String()
		co.Dispose()
	}
	want := map[string]string{
		"identity_immediate":      "identity/identity",
		"identity_current_thread": "identity/identity",
		"synchronize_new_thread":  "synchronize/synchronize",
		"synchronize_event_loop":  "synchronize/synchronize",
		"serialize_new_thread":    "serialize/serialize",
		"serialize_event_loop":    "serialize/serialize",
		"observe_on_new_thread":   "observe_on/observe_on",
		"observe_on_event_loop":   "observe_on/observe_on",
		"observe_on_run_loop":     "observe_on/observe_on",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("family mismatch (-want +got):\n%s", diff)
	}
}

func TestIdentityImmediateRunsInline(t *testing.T) {
	t.Parallel()
	co := newFactory(t).IdentityImmediate().CreateCoordinator()
	defer co.Dispose()
	ran := false
	co.Schedule(func() { ran = true })
	if !ran {
		t.Fatal("identity immediate must run on the calling goroutine before returning")
	}
}

func TestSynchronizeFIFO(t *testing.T) {
	t.Parallel()
	co := newFactory(t).SynchronizeNewThread().CreateCoordinator()
	defer co.Dispose()
	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		i := i
		co.Schedule(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == 49 {
				close(done)
			}
		})
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled actions did not finish")
	}
	want := make([]int, 50)
	for i := range want {
		want[i] = i
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("synchronize must preserve submission order (-want +got):\n%s", diff)
	}
}

func TestSerializeNeverOverlaps(t *testing.T) {
	t.Parallel()
	f := newFactory(t)
	for name, c := range map[string]Coordination{
		"new_thread": f.SerializeNewThread(),
		"event_loop": f.SerializeEventLoop(),
	} {
		c := c
		t.Run(name, func(t *testing.T) {
			const producers, perProducer = 8, 50
			var inFlight, overlaps, runs atomic.Int32
			var wg sync.WaitGroup
			wg.Add(producers * perProducer)
			var g errgroup.Group
			coords := make([]*Coordinator, producers)
			for p := range coords {
				coords[p] = c.CreateCoordinator()
			}
			for p := 0; p < producers; p++ {
				co := coords[p]
				g.Go(func() error {
					for i := 0; i < perProducer; i++ {
						co.Schedule(func() {
							defer wg.Done()
							if inFlight.Add(1) > 1 {
								overlaps.Add(1)
							}
							runs.Add(1)
							inFlight.Add(-1)
						})
					}
					return nil
				})
			}
			_ = g.Wait()
			wg.Wait()
			for _, co := range coords {
				co.Dispose()
			}
			if overlaps.Load() != 0 {
				t.Fatalf("serialized deliveries overlapped %d times", overlaps.Load())
			}
			if runs.Load() != producers*perProducer {
				t.Fatalf("expected %d runs, got %d", producers*perProducer, runs.Load())
			}
		})
	}
}

func TestSerializeSharesWorkerAndReleases(t *testing.T) {
	t.Parallel()
	c := newFactory(t).SerializeNewThread()
	a, b := c.CreateCoordinator(), c.CreateCoordinator()
	if a.Worker() != b.Worker() {
		t.Fatal("serialize coordinators must share one worker")
	}
	w := a.Worker()
	a.Dispose()
	if w.IsDisposed() {
		t.Fatal("shared worker released while still referenced")
	}
	b.Dispose()
	if !w.IsDisposed() {
		t.Fatal("shared worker not released after the last coordinator")
	}
	fresh := c.CreateCoordinator()
	defer fresh.Dispose()
	if fresh.Worker() == w || fresh.Worker().IsDisposed() {
		t.Fatal("expected a fresh worker after release")
	}
}

func TestSynchronizeWorkersAreDistinct(t *testing.T) {
	t.Parallel()
	c := newFactory(t).SynchronizeNewThread()
	a, b := c.CreateCoordinator(), c.CreateCoordinator()
	defer a.Dispose()
	defer b.Dispose()
	if a.Worker() == b.Worker() {
		t.Fatal("synchronize coordinators must not share a worker")
	}
}

func TestDisposedCoordinatorSkipsPending(t *testing.T) {
	t.Parallel()
	co := newFactory(t).ObserveOnNewThread().CreateCoordinator()
	var ran atomic.Bool
	co.ScheduleAt(co.Now().Add(30*time.Millisecond), func() { ran.Store(true) })
	co.Dispose()
	time.Sleep(60 * time.Millisecond)
	if ran.Load() {
		t.Fatal("action ran after its coordinator was disposed")
	}
	if !co.Worker().IsDisposed() {
		t.Fatal("disposing the coordinator must release its worker")
	}
}

func TestObserveOnRunLoopNeedsDispatch(t *testing.T) {
	t.Parallel()
	rl := schedulers.NewRunLoop()
	co := newFactory(t).ObserveOnRunLoop(rl).CreateCoordinator()
	defer co.Dispose()
	if !co.Batched() {
		t.Fatal("observe-on coordinators drain in batches")
	}
	var ran atomic.Bool
	co.Schedule(func() { ran.Store(true) })
	if ran.Load() {
		t.Fatal("run-loop action ran before Dispatch")
	}
	rl.Dispatch()
	if !ran.Load() {
		t.Fatal("Dispatch did not run the action")
	}
}

func TestFactoryCloseWithoutEventLoop(t *testing.T) {
	t.Parallel()
	f := NewFactory()
	if err := f.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}
