package resource

import (
	"io"
	"sync"
)

// Rc is a reference-counted owner of an OS primitive (file, socket). The
// wrapped value is closed when the last reference is released, so a
// resource closed from the table does not pull the handle out from under
// operations that already acquired it.
type Rc[T io.Closer] struct {
	value T
	mu    sync.Mutex
	refs  int
}

// NewRc returns an Rc holding one reference to v.
func NewRc[T io.Closer](v T) *Rc[T] {
	return &Rc[T]{value: v, refs: 1}
}

// Acquire adds a reference. It returns false once the count has reached
// zero.
func (r *Rc[T]) Acquire() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refs == 0 {
		var zero T
		return zero, false
	}
	r.refs++
	return r.value, true
}

// Release drops a reference, closing the value when none remain. The
// close error is returned to the releaser that triggered it. Releasing
// more than acquired is a no-op.
func (r *Rc[T]) Release() error {
	r.mu.Lock()
	if r.refs == 0 {
		r.mu.Unlock()
		return nil
	}
	r.refs--
	if r.refs != 0 {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()
	return r.value.Close()
}

// Refs returns the current reference count.
func (r *Rc[T]) Refs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs
}

// Value returns the wrapped value without acquiring it.
func (r *Rc[T]) Value() T {
	return r.value
}
