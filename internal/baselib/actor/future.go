package actor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// promise is the channel backed Promise implementation used by Ask.
type promise[T any] struct {
	done   chan struct{}
	once   sync.Once
	result fn.Result[T]
}

// NewPromise returns an uncompleted promise.
func NewPromise[T any]() Promise[T] {
	return &promise[T]{
		done: make(chan struct{}),
	}
}

// Complete sets the result if it has not been set yet.
func (p *promise[T]) Complete(result fn.Result[T]) bool {
	completed := false
	p.once.Do(func() {
		p.result = result
		close(p.done)
		completed = true
	})

	return completed
}

// Future returns the future view of the promise.
func (p *promise[T]) Future() Future[T] {
	return &future[T]{p: p}
}

// future reads the result of a promise.
type future[T any] struct {
	p *promise[T]
}

// Await blocks until the promise completes or ctx is done.
func (f *future[T]) Await(ctx context.Context) fn.Result[T] {
	select {
	case <-f.p.done:
		return f.p.result

	case <-ctx.Done():
		return fn.Err[T](ctx.Err())
	}
}

// ThenApply chains a transformation onto the future.
func (f *future[T]) ThenApply(ctx context.Context,
	apply func(T) T) Future[T] {

	next := NewPromise[T]()
	go func() {
		val, err := f.Await(ctx).Unpack()
		if err != nil {
			next.Complete(fn.Err[T](err))
			return
		}

		next.Complete(fn.Ok(apply(val)))
	}()

	return next.Future()
}

// OnComplete invokes cb with the result in a new goroutine.
func (f *future[T]) OnComplete(ctx context.Context, cb func(fn.Result[T])) {
	go func() {
		cb(f.Await(ctx))
	}()
}
