package schedulers

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// Kind names a scheduler variant. It labels observer hooks and metrics.
type Kind string

const (
	KindImmediate     Kind = "immediate"
	KindCurrentThread Kind = "current_thread"
	KindNewThread     Kind = "new_thread"
	KindEventLoop     Kind = "event_loop"
	KindRunLoop       Kind = "run_loop"
)

// Observer receives lifecycle events from workers. Implementations must be
// safe for concurrent use.
type Observer interface {
	WorkerCreated(ctx context.Context, kind Kind)
	WorkerReleased(ctx context.Context, kind Kind)
	// ActionStarted reports how late the action started relative to its due time.
	ActionStarted(ctx context.Context, kind Kind, lateness time.Duration)
	// ActionFinished reports the run time; err is a *PanicError if the action panicked.
	ActionFinished(ctx context.Context, kind Kind, dur time.Duration, err error)
	// ActionCancelled reports an action whose subscription was disposed before it ran.
	ActionCancelled(ctx context.Context, kind Kind)
}

// Option configures a scheduler.
type Option func(*Options)

// Options holds scheduler configuration. Build it with Option values.
type Options struct {
	Logger    *slog.Logger
	ErrorHook func(error)
	Observer  Observer
	Clock     func() time.Time
	Context   context.Context
	// Loops is the pool size of an EventLoop.
	Loops int
}

const maxDefaultLoops = 8

func defaultOptions() Options {
	loops := runtime.GOMAXPROCS(0)
	if loops > maxDefaultLoops {
		loops = maxDefaultLoops
	}
	return Options{Clock: time.Now, Context: context.Background(), Loops: loops}
}

func buildOptions(optFns []Option) Options {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Context == nil {
		o.Context = context.Background()
	}
	if o.Loops <= 0 {
		o.Loops = 1
	}
	if o.ErrorHook == nil {
		logger := o.Logger
		o.ErrorHook = func(err error) {
			logger.Error("scheduled action failed", "error", err)
		}
	}
	return o
}

// WithLogger sets the logger used by the default error hook.
func WithLogger(l *slog.Logger) Option { return func(o *Options) { o.Logger = l } }

// WithErrorHook routes recovered action panics to fn instead of the logger.
func WithErrorHook(fn func(error)) Option { return func(o *Options) { o.ErrorHook = fn } }

// WithObserver attaches obs to every worker. Combine several with Observers.
func WithObserver(obs Observer) Option { return func(o *Options) { o.Observer = obs } }

// WithClock replaces time.Now as the source of Now and due times.
func WithClock(now func() time.Time) Option { return func(o *Options) { o.Clock = now } }

// WithContext sets the base context of every worker. Cancelling it stops
// thread-backed workers; observers receive contexts derived from it.
func WithContext(ctx context.Context) Option { return func(o *Options) { o.Context = ctx } }

// WithLoops sets the number of event-loop goroutines.
func WithLoops(n int) Option { return func(o *Options) { o.Loops = n } }

type observers []Observer

// Observers fans every event out to each of obs in order.
func Observers(obs ...Observer) Observer { return observers(obs) }

func (m observers) WorkerCreated(ctx context.Context, kind Kind) {
	for _, o := range m {
		o.WorkerCreated(ctx, kind)
	}
}

func (m observers) WorkerReleased(ctx context.Context, kind Kind) {
	for _, o := range m {
		o.WorkerReleased(ctx, kind)
	}
}

func (m observers) ActionStarted(ctx context.Context, kind Kind, lateness time.Duration) {
	for _, o := range m {
		o.ActionStarted(ctx, kind, lateness)
	}
}

func (m observers) ActionFinished(ctx context.Context, kind Kind, dur time.Duration, err error) {
	for _, o := range m {
		o.ActionFinished(ctx, kind, dur, err)
	}
}

func (m observers) ActionCancelled(ctx context.Context, kind Kind) {
	for _, o := range m {
		o.ActionCancelled(ctx, kind)
	}
}
