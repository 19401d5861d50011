package kra

import "context"

// Outcome is the result of a call run with Async.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Async runs fn on its own goroutine. The returned channel delivers exactly
// one Outcome and is then closed. Cancelling ctx cancels the underlying
// request; the outcome then carries a *TransportError.
//
//	ch := kra.Async(ctx, func(ctx context.Context) ([]kra.File, error) {
//		return client.ListFiles(ctx, session, "")
//	})
//	out := <-ch
func Async[T any](ctx context.Context, fn func(context.Context) (T, error)) <-chan Outcome[T] {
	ch := make(chan Outcome[T], 1)
	go func() {
		defer close(ch)
		v, err := fn(ctx)
		ch <- Outcome[T]{Value: v, Err: err}
	}()
	return ch
}
