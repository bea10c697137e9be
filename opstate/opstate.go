// Package opstate implements the typed state container handed to every op.
//
// A [State] holds at most one value per Go type. Values are stored in a
// per-type box; [Borrow] returns a pointer into that box, so mutations are
// visible to later borrowers and values are never aliased by copying.
//
// A State is confined to the loop goroutine and does no locking.
package opstate

import (
	"fmt"
	"reflect"
)

// State is a type-keyed bag of singletons.
type State struct {
	values map[reflect.Type]any
}

// MissingError is the panic value of [Borrow] and [Take] when no value of
// the requested type was ever inserted. It indicates a wiring bug.
type MissingError struct {
	Type reflect.Type
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("opstate: required state of type %s is not present", e.Type)
}

// New returns an empty State.
func New() *State {
	return &State{values: make(map[reflect.Type]any)}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Put stores v, replacing any existing value of type T. Pointers previously
// returned by [Borrow] keep referring to the old box.
func Put[T any](s *State, v T) {
	if s.values == nil {
		s.values = make(map[reflect.Type]any)
	}
	box := new(T)
	*box = v
	s.values[typeOf[T]()] = box
}

// Has reports whether a value of type T is present.
func Has[T any](s *State) bool {
	_, ok := s.values[typeOf[T]()]
	return ok
}

// TryBorrow returns a pointer to the value of type T, if present.
func TryBorrow[T any](s *State) (*T, bool) {
	box, ok := s.values[typeOf[T]()]
	if !ok {
		return nil, false
	}
	return box.(*T), true
}

// Borrow returns a pointer to the value of type T. It panics with a
// *[MissingError] if none is present.
func Borrow[T any](s *State) *T {
	v, ok := TryBorrow[T](s)
	if !ok {
		panic(&MissingError{Type: typeOf[T]()})
	}
	return v
}

// TryTake removes and returns the value of type T, if present.
func TryTake[T any](s *State) (T, bool) {
	key := typeOf[T]()
	box, ok := s.values[key]
	if !ok {
		var zero T
		return zero, false
	}
	delete(s.values, key)
	return *box.(*T), true
}

// Take removes and returns the value of type T. It panics with a
// *[MissingError] if none is present.
func Take[T any](s *State) T {
	v, ok := TryTake[T](s)
	if !ok {
		panic(&MissingError{Type: typeOf[T]()})
	}
	return v
}

// Len returns the number of stored values.
func (s *State) Len() int {
	return len(s.values)
}
