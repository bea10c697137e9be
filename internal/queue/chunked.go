// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package queue provides the chunked FIFO used for loop ingress and for the
// ready queue of the task set.
package queue

import (
	"sync"
)

// chunkSize is the number of items per node in the linked list.
const chunkSize = 128

// Chunked is a chunked linked-list FIFO queue.
//
// Thread Safety: NOT thread-safe. The caller must provide external
// synchronization.
//
// Fixed-size arrays give cache locality and amortize allocations, and
// exhausted chunks are recycled through a per-queue pool.
type Chunked[T any] struct {
	head   *chunk[T]
	tail   *chunk[T]
	pool   sync.Pool
	length int
}

type chunk[T any] struct {
	items   [chunkSize]T
	next    *chunk[T]
	readPos int // first unread slot
	pos     int // first unused slot
}

func (q *Chunked[T]) newChunk() *chunk[T] {
	if v := q.pool.Get(); v != nil {
		c := v.(*chunk[T])
		c.pos = 0
		c.readPos = 0
		c.next = nil
		return c
	}
	return &chunk[T]{}
}

// returnChunk clears the slots before pooling, so retained references (e.g.
// closures) don't leak.
func (q *Chunked[T]) returnChunk(c *chunk[T]) {
	var zero T
	for i := 0; i < c.pos; i++ {
		c.items[i] = zero
	}
	c.pos = 0
	c.readPos = 0
	c.next = nil
	q.pool.Put(c)
}

// Push adds an item to the tail of the queue.
func (q *Chunked[T]) Push(v T) {
	if q.tail == nil {
		q.tail = q.newChunk()
		q.head = q.tail
	}

	if q.tail.pos == len(q.tail.items) {
		next := q.newChunk()
		q.tail.next = next
		q.tail = next
	}

	q.tail.items[q.tail.pos] = v
	q.tail.pos++
	q.length++
}

// Pop removes and returns the head of the queue, or false if it is empty.
func (q *Chunked[T]) Pop() (T, bool) {
	var zero T

	if q.head == nil {
		return zero, false
	}

	if q.head.readPos >= q.head.pos {
		if q.head == q.tail {
			q.head.pos = 0
			q.head.readPos = 0
			return zero, false
		}
		old := q.head
		q.head = q.head.next
		q.returnChunk(old)
	}

	if q.head.readPos >= q.head.pos {
		return zero, false
	}

	v := q.head.items[q.head.readPos]
	q.head.items[q.head.readPos] = zero
	q.head.readPos++
	q.length--

	if q.head.readPos >= q.head.pos {
		if q.head == q.tail {
			q.head.pos = 0
			q.head.readPos = 0
			return v, true
		}
		old := q.head
		q.head = q.head.next
		q.returnChunk(old)
	}

	return v, true
}

// Peek returns the head of the queue without removing it.
func (q *Chunked[T]) Peek() (T, bool) {
	var zero T
	for c := q.head; c != nil; c = c.next {
		if c.readPos < c.pos {
			return c.items[c.readPos], true
		}
	}
	return zero, false
}

// Len returns the number of queued items.
func (q *Chunked[T]) Len() int {
	return q.length
}
