package rx

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrEmpty is returned by Blocking.Last when the source completes
	// without items.
	ErrEmpty = errors.New("rx: sequence contains no elements")
	// ErrDisposed is returned when a blocking subscription is disposed
	// before it receives a terminal notification.
	ErrDisposed = errors.New("rx: subscription disposed before termination")
)

// Blocking waits on the calling goroutine for a stream to terminate.
type Blocking[T any] struct {
	source Observable[T]
}

// AsBlocking returns a view of o whose methods wait for termination.
func (o Observable[T]) AsBlocking() Blocking[T] { return Blocking[T]{source: o} }

// Subscribe calls onNext for every item, then onCompleted, and returns
// once the stream has terminated. An OnError is returned as the error.
func (b Blocking[T]) Subscribe(onNext func(T), onCompleted func()) error {
	return b.run(context.Background(), onNext, onCompleted)
}

// ForEach calls fn for every item. It returns ctx.Err() if ctx ends first.
func (b Blocking[T]) ForEach(ctx context.Context, fn func(T)) error {
	return b.run(ctx, fn, nil)
}

// ToSlice collects every item until o completes.
func (b Blocking[T]) ToSlice(ctx context.Context) ([]T, error) {
	var mu sync.Mutex
	var out []T
	err := b.run(ctx, func(v T) {
		mu.Lock()
		out = append(out, v)
		mu.Unlock()
	}, nil)
	mu.Lock()
	defer mu.Unlock()
	return out, err
}

// Last returns the final item, or ErrEmpty if there was none.
func (b Blocking[T]) Last(ctx context.Context) (T, error) {
	var mu sync.Mutex
	var last T
	seen := false
	err := b.run(ctx, func(v T) {
		mu.Lock()
		last, seen = v, true
		mu.Unlock()
	}, nil)
	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		var zero T
		return zero, err
	}
	if !seen {
		return last, ErrEmpty
	}
	return last, nil
}

func (b Blocking[T]) run(ctx context.Context, onNext func(T), onCompleted func()) error {
	done := make(chan struct{})
	var err error
	s := b.source.Subscribe(ObserverFunc(
		onNext,
		func(e error) {
			err = e
			close(done)
		},
		func() {
			if onCompleted != nil {
				onCompleted()
			}
			close(done)
		},
	))
	select {
	case <-done:
		return err
	case <-s.Done():
		select {
		case <-done:
			return err
		default:
			return ErrDisposed
		}
	case <-ctx.Done():
		s.Dispose()
		return ctx.Err()
	}
}
