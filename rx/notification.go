package rx

import "fmt"

// Observer receives a notification sequence.
type Observer[T any] interface {
	OnNext(v T)
	OnError(err error)
	OnCompleted()
}

type funcObserver[T any] struct {
	next      func(T)
	err       func(error)
	completed func()
}

// ObserverFunc adapts three callbacks into an Observer. Any of them may be
// nil.
func ObserverFunc[T any](onNext func(T), onError func(error), onCompleted func()) Observer[T] {
	return funcObserver[T]{next: onNext, err: onError, completed: onCompleted}
}

func (o funcObserver[T]) OnNext(v T) {
	if o.next != nil {
		o.next(v)
	}
}

func (o funcObserver[T]) OnError(err error) {
	if o.err != nil {
		o.err(err)
	}
}

func (o funcObserver[T]) OnCompleted() {
	if o.completed != nil {
		o.completed()
	}
}

// NotificationKind tells the three notification shapes apart.
type NotificationKind int

const (
	KindNext NotificationKind = iota
	KindError
	KindCompleted
)

// String returns "next", "error" or "completed".
func (k NotificationKind) String() string {
	switch k {
	case KindNext:
		return "next"
	case KindError:
		return "error"
	case KindCompleted:
		return "completed"
	}
	return "unknown"
}

// Notification is one reified observer call.
type Notification[T any] struct {
	Kind  NotificationKind
	Value T
	Err   error
}

// Next returns an item notification carrying v.
func Next[T any](v T) Notification[T] { return Notification[T]{Kind: KindNext, Value: v} }

// Error returns a terminal notification carrying err.
func Error[T any](err error) Notification[T] { return Notification[T]{Kind: KindError, Err: err} }

// Completed returns a terminal notification without an error.
func Completed[T any]() Notification[T] { return Notification[T]{Kind: KindCompleted} }

// Accept replays n onto o.
func (n Notification[T]) Accept(o Observer[T]) {
	switch n.Kind {
	case KindNext:
		o.OnNext(n.Value)
	case KindError:
		o.OnError(n.Err)
	case KindCompleted:
		o.OnCompleted()
	}
}

// Terminal reports whether n ends a sequence.
func (n Notification[T]) Terminal() bool { return n.Kind != KindNext }

// String renders n for test failures and logs.
func (n Notification[T]) String() string {
	switch n.Kind {
	case KindNext:
		return fmt.Sprintf("next(%v)", n.Value)
	case KindError:
		return fmt.Sprintf("error(%v)", n.Err)
	}
	return n.Kind.String()
}
