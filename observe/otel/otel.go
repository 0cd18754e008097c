package otel

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NetPo4ki/go-rx/schedulers"
)

const (
	attrKind     = attribute.Key("rx.scheduler.kind")
	attrLateness = attribute.Key("rx.action.lateness_ms")
	attrDuration = attribute.Key("rx.action.duration_ms")
)

// Observer records scheduler events on the span found in the worker
// context. Contexts without a recording span cost a single lookup.
type Observer struct {
	// SlowAction, when positive, adds an event for actions that start
	// later than this after their due time.
	SlowAction time.Duration
}

// New returns an Observer that does not flag slow actions.
func New() *Observer { return &Observer{} }

func span(ctx context.Context) trace.Span {
	s := trace.SpanFromContext(ctx)
	if !s.IsRecording() {
		return nil
	}
	return s
}

// WorkerCreated adds a worker.created event.
func (o *Observer) WorkerCreated(ctx context.Context, kind schedulers.Kind) {
	if s := span(ctx); s != nil {
		s.AddEvent("worker.created", trace.WithAttributes(attrKind.String(string(kind))))
	}
}

// WorkerReleased adds a worker.released event.
func (o *Observer) WorkerReleased(ctx context.Context, kind schedulers.Kind) {
	if s := span(ctx); s != nil {
		s.AddEvent("worker.released", trace.WithAttributes(attrKind.String(string(kind))))
	}
}

// ActionStarted adds an action.late event when lateness exceeds SlowAction.
func (o *Observer) ActionStarted(ctx context.Context, kind schedulers.Kind, lateness time.Duration) {
	if o.SlowAction <= 0 || lateness < o.SlowAction {
		return
	}
	if s := span(ctx); s != nil {
		s.AddEvent("action.late", trace.WithAttributes(
			attrKind.String(string(kind)),
			attrLateness.Int64(lateness.Milliseconds()),
		))
	}
}

// ActionFinished records a panicking action as a span error.
func (o *Observer) ActionFinished(ctx context.Context, kind schedulers.Kind, dur time.Duration, err error) {
	var pe *schedulers.PanicError
	if !errors.As(err, &pe) {
		return
	}
	if s := span(ctx); s != nil {
		s.RecordError(err, trace.WithAttributes(
			attrKind.String(string(kind)),
			attrDuration.Int64(dur.Milliseconds()),
		))
		s.SetStatus(codes.Error, "scheduled action panicked")
	}
}

// ActionCancelled adds an action.cancelled event.
func (o *Observer) ActionCancelled(ctx context.Context, kind schedulers.Kind) {
	if s := span(ctx); s != nil {
		s.AddEvent("action.cancelled", trace.WithAttributes(attrKind.String(string(kind))))
	}
}

var _ schedulers.Observer = (*Observer)(nil)
