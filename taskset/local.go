package taskset

import (
	"fmt"

	"github.com/joeycumines/go-opcore/internal/goid"
)

// Local holds a value that may only be used on one goroutine, typically
// the loop goroutine. It is the one place a value produced by a task is
// pinned to its consumer: the task may construct and hand it over, but
// only the owner may Get it.
type Local[T any] struct {
	value T
	owner uint64
}

// NewLocal pins v to the goroutine with id owner.
func NewLocal[T any](owner uint64, v T) Local[T] {
	return Local[T]{value: v, owner: owner}
}

// Get returns the value. It panics if called off the owning goroutine.
func (l Local[T]) Get() T {
	if id := goid.Get(); id != l.owner {
		panic(fmt.Sprintf("taskset: loop-local value used on goroutine %d, owned by %d", id, l.owner))
	}
	return l.value
}

// Owner returns the owning goroutine id.
func (l Local[T]) Owner() uint64 {
	return l.owner
}
