// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package completion tracks per-call completion ids.
//
// Every async op call is assigned an [ID], bound to the handle that will
// eventually be resolved (or rejected) with its outcome. The steady state
// is a fixed-size ring indexed by id; no hash map is involved. When the
// cursor laps an entry that is still unresolved, that entry is moved to an
// ordered fallback (a B-tree keyed by id), so long-lived calls never block
// allocation.
package completion

import (
	"strconv"

	"github.com/google/btree"
)

// ID identifies one pending call. Ids are allocated monotonically and may
// wrap around.
type ID uint32

// DefaultCapacity is the default ring size.
const DefaultCapacity = 4096

type (
	// Tracker maps ids to handles of type H. It is not safe for concurrent
	// use; the owning loop confines it to one goroutine.
	Tracker[H any] struct {
		fallback *btree.BTreeG[entry[H]]
		ring     []slot[H]
		mask     uint32
		next     ID
		live     int
	}

	slot[H any] struct {
		h    H
		id   ID
		used bool
	}

	entry[H any] struct {
		h  H
		id ID
	}

	// Option configures a [Tracker].
	Option interface {
		apply(*options) error
	}

	options struct {
		capacity int
		base     ID
	}

	optionFunc func(*options) error
)

func (f optionFunc) apply(o *options) error { return f(o) }

// WithCapacity sets the ring size, which must be a power of two.
func WithCapacity(n int) Option {
	return optionFunc(func(o *options) error {
		if n <= 0 || n&(n-1) != 0 {
			return &CapacityError{Capacity: n}
		}
		o.capacity = n
		return nil
	})
}

// WithBase sets the first id to be allocated.
func WithBase(id ID) Option {
	return optionFunc(func(o *options) error {
		o.base = id
		return nil
	})
}

// CapacityError is returned by [New] for a capacity that is not a positive
// power of two.
type CapacityError struct {
	Capacity int
}

func (e *CapacityError) Error() string {
	return "completion: capacity must be a positive power of two, got " + strconv.Itoa(e.Capacity)
}

// New returns an empty tracker.
func New[H any](opts ...Option) (*Tracker[H], error) {
	cfg := options{capacity: DefaultCapacity}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(&cfg); err != nil {
			return nil, err
		}
	}
	t := &Tracker[H]{
		ring: make([]slot[H], cfg.capacity),
		mask: uint32(cfg.capacity - 1),
		next: cfg.base,
	}
	// ordered oldest first, by distance behind the cursor, so the order
	// survives the id space wrapping
	t.fallback = btree.NewG(8, func(a, b entry[H]) bool {
		return t.next-a.id > t.next-b.id
	})
	return t, nil
}

// Allocate binds h to a fresh id.
func (t *Tracker[H]) Allocate(h H) ID {
	id := t.next
	t.next++
	s := &t.ring[uint32(id)&t.mask]
	if s.used {
		t.fallback.ReplaceOrInsert(entry[H]{id: s.id, h: s.h})
	}
	*s = slot[H]{id: id, h: h, used: true}
	t.live++
	return id
}

// Has reports whether id is allocated and not yet taken.
func (t *Tracker[H]) Has(id ID) bool {
	_, ok := t.Peek(id)
	return ok
}

// Peek returns the handle for id without releasing it.
func (t *Tracker[H]) Peek(id ID) (H, bool) {
	if t.inWindow(id) {
		if s := &t.ring[uint32(id)&t.mask]; s.used && s.id == id {
			return s.h, true
		}
	}
	if e, ok := t.fallback.Get(entry[H]{id: id}); ok {
		return e.h, true
	}
	var zero H
	return zero, false
}

// Take releases id, returning its handle. Each id may be taken at most once.
func (t *Tracker[H]) Take(id ID) (H, bool) {
	var zero H
	if t.inWindow(id) {
		if s := &t.ring[uint32(id)&t.mask]; s.used && s.id == id {
			h := s.h
			*s = slot[H]{}
			t.live--
			return h, true
		}
	}
	if e, ok := t.fallback.Delete(entry[H]{id: id}); ok {
		t.live--
		return e.h, true
	}
	return zero, false
}

// Len returns the number of outstanding ids.
func (t *Tracker[H]) Len() int {
	return t.live
}

// FallbackLen returns the number of outstanding ids that were evicted from
// the ring.
func (t *Tracker[H]) FallbackLen() int {
	return t.fallback.Len()
}

// Next returns the id the next call to Allocate will return.
func (t *Tracker[H]) Next() ID {
	return t.next
}

// Drain takes every outstanding id, oldest first, passing each to fn.
func (t *Tracker[H]) Drain(fn func(id ID, h H)) {
	var evicted []entry[H]
	t.fallback.Ascend(func(e entry[H]) bool {
		evicted = append(evicted, e)
		return true
	})
	t.fallback.Clear(false)
	for _, e := range evicted {
		t.live--
		fn(e.id, e.h)
	}
	end := t.next
	for id := end - ID(len(t.ring)); id != end; id++ {
		s := &t.ring[uint32(id)&t.mask]
		if !s.used || s.id != id {
			continue
		}
		h := s.h
		*s = slot[H]{}
		t.live--
		fn(id, h)
	}
}

// inWindow reports whether id is one of the last len(ring) allocations,
// using wrapping arithmetic.
func (t *Tracker[H]) inWindow(id ID) bool {
	return uint32(t.next-id-1) < uint32(len(t.ring))
}
