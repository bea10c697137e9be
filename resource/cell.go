package resource

import (
	"context"
)

// Cell guards a value for exclusive, async-aware access. Borrow suspends
// until the value is free or ctx is done, which serializes reads and writes
// of a resource without blocking the loop goroutine.
type Cell[T any] struct {
	ch chan *T
}

// NewCell returns a cell holding v.
func NewCell[T any](v T) *Cell[T] {
	c := &Cell[T]{ch: make(chan *T, 1)}
	c.ch <- &v
	return c
}

// Borrow waits for exclusive access. The returned release func must be
// called exactly once, and the pointer must not be used after it.
func (c *Cell[T]) Borrow(ctx context.Context) (*T, func(), error) {
	select {
	case v := <-c.ch:
		return v, c.releaser(v), nil
	default:
	}
	select {
	case v := <-c.ch:
		return v, c.releaser(v), nil
	case <-ctx.Done():
		return nil, nil, context.Cause(ctx)
	}
}

// TryBorrow is Borrow without waiting.
func (c *Cell[T]) TryBorrow() (*T, func(), bool) {
	select {
	case v := <-c.ch:
		return v, c.releaser(v), true
	default:
		return nil, nil, false
	}
}

func (c *Cell[T]) releaser(v *T) func() {
	var done bool
	return func() {
		if done {
			panic(`resource: cell released twice`)
		}
		done = true
		c.ch <- v
	}
}
