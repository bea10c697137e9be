// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package taskset implements the pending async op set: a dynamically sized
// collection of spawned tasks, harvested one at a time on the loop goroutine
// in the order they settle.
//
// Each task's outcome is settled exactly once, by whichever happens first:
// its function returning, a panic or runtime.Goexit on its goroutine, an
// [AbortHandle.Abort], or a tied [cancel.Handle] firing. A result arriving
// after the task was aborted is discarded.
//
// [Set.PollNext] is cancel-safe: when nothing is ready it records the waker
// and returns without consuming anything, so a caller may interleave it
// with other sources of work.
package taskset

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-opcore/cancel"
	"github.com/joeycumines/go-opcore/internal/queue"
	"github.com/joeycumines/go-opcore/operr"
)

var (
	// ErrGoexit is the outcome of a task whose goroutine exited via
	// runtime.Goexit.
	ErrGoexit = operr.New(operr.KindSubstrate, "taskset: task exited via runtime.Goexit")

	// ErrEmpty is returned by [Set.Next] when the set holds no tasks.
	ErrEmpty = errors.New("taskset: no tasks")
)

// PanicError is the outcome of a task that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("taskset: task panicked: %v", e.Value)
}

// Unwrap returns the panic value, if it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// OpErrorKind classifies panics as substrate failures.
func (e *PanicError) OpErrorKind() operr.Kind {
	return operr.KindSubstrate
}

// Result is the settled outcome of one task.
type Result[T any] struct {
	Value T
	Err   error
	// Tag is the value passed to [WithTag].
	Tag any
	ID  uint64
}

// Set is a collection of in-flight tasks. Spawn, Abort and Len may be
// called from any goroutine; harvesting (PollNext, TryNext, Next) is meant
// for one consumer.
type Set[T any] struct {
	spawn   func(fn func())
	running map[uint64]*task[T]
	wake    func()
	ready   queue.Chunked[*task[T]]
	nextID  uint64
	mu      sync.Mutex
}

// New returns an empty set. spawn is the substrate tasks run on, usually
// a reactor's Spawn; nil means a new goroutine per task.
func New[T any](spawn func(fn func())) *Set[T] {
	if spawn == nil {
		spawn = func(fn func()) { go fn() }
	}
	return &Set[T]{
		spawn:   spawn,
		running: make(map[uint64]*task[T]),
	}
}

const (
	taskRunning uint32 = iota
	taskSettled
)

type task[T any] struct {
	set        *Set[T]
	cancelCtx  context.CancelCauseFunc
	stopHandle func() bool
	result     Result[T]
	id         uint64
	state      atomic.Uint32
}

type (
	// SpawnOption configures one task.
	SpawnOption interface {
		applySpawn(*spawnOptions)
	}

	spawnOptionFunc func(*spawnOptions)

	spawnOptions struct {
		handle *cancel.Handle
		tag    any
	}
)

func (f spawnOptionFunc) applySpawn(o *spawnOptions) { f(o) }

// WithCancel ties the task to h. When h fires, the task settles with h's
// cancellation error, and its context is cancelled.
func WithCancel(h *cancel.Handle) SpawnOption {
	return spawnOptionFunc(func(o *spawnOptions) { o.handle = h })
}

// WithTag attaches caller data, returned in the task's [Result].
func WithTag(tag any) SpawnOption {
	return spawnOptionFunc(func(o *spawnOptions) { o.tag = tag })
}

// Spawn starts fn on the substrate. fn receives a context that is
// cancelled once the task settles by any means.
func (s *Set[T]) Spawn(ctx context.Context, fn func(ctx context.Context) (T, error), opts ...SpawnOption) *AbortHandle {
	var cfg spawnOptions
	for _, opt := range opts {
		if opt != nil {
			opt.applySpawn(&cfg)
		}
	}

	ctx, cancelCtx := context.WithCancelCause(ctx)
	s.mu.Lock()
	t := &task[T]{
		set:       s,
		cancelCtx: cancelCtx,
		id:        s.nextID,
		result:    Result[T]{Tag: cfg.tag},
	}
	s.nextID++
	s.running[t.id] = t
	s.mu.Unlock()

	handle := &AbortHandle{id: t.id, abort: t.abort, done: t.settled}

	if h := cfg.handle; h != nil {
		if err := h.Err(); err != nil {
			t.settle(*new(T), err)
			return handle
		}
		stop := h.OnCancel(func(err error) { t.settle(*new(T), err) })
		s.mu.Lock()
		t.stopHandle = stop
		s.mu.Unlock()
		if t.settled() {
			stop()
			return handle
		}
	}

	s.spawn(func() { t.run(ctx, fn) })
	return handle
}

func (t *task[T]) run(ctx context.Context, fn func(ctx context.Context) (T, error)) {
	completed := false
	defer func() {
		if r := recover(); r != nil {
			t.settle(*new(T), &PanicError{Value: r, Stack: debug.Stack()})
		} else if !completed {
			t.settle(*new(T), ErrGoexit)
		}
	}()
	v, err := fn(ctx)
	completed = true
	t.settle(v, err)
}

func (t *task[T]) settled() bool {
	return t.state.Load() == taskSettled
}

func (t *task[T]) abort(reason error) bool {
	if reason == nil {
		reason = cancel.ErrCancelled
	}
	return t.settle(*new(T), reason)
}

// settle records the outcome if the task has not settled yet.
func (t *task[T]) settle(v T, err error) bool {
	if !t.state.CompareAndSwap(taskRunning, taskSettled) {
		return false
	}
	t.result.Value = v
	t.result.Err = err
	t.result.ID = t.id
	if err != nil {
		t.cancelCtx(err)
	} else {
		t.cancelCtx(context.Canceled)
	}

	s := t.set
	s.mu.Lock()
	stop := t.stopHandle
	t.stopHandle = nil
	delete(s.running, t.id)
	s.ready.Push(t)
	wake := s.wake
	s.wake = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if wake != nil {
		wake()
	}
	return true
}

// PollNext returns the next settled task. If none is ready, it stores
// wake, to be called once (from an arbitrary goroutine) when one becomes
// ready, and returns false without consuming anything. A later call
// replaces the stored waker.
func (s *Set[T]) PollNext(wake func()) (Result[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.ready.Pop(); ok {
		return t.result, true
	}
	s.wake = wake
	return Result[T]{}, false
}

// TryNext returns the next settled task, if any, without storing a waker.
func (s *Set[T]) TryNext() (Result[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.ready.Pop(); ok {
		return t.result, true
	}
	return Result[T]{}, false
}

// Next waits for the next settled task. It returns [ErrEmpty] if the set
// holds no tasks, or the context's cause if ctx is done first.
func (s *Set[T]) Next(ctx context.Context) (Result[T], error) {
	signal := make(chan struct{}, 1)
	wake := func() {
		select {
		case signal <- struct{}{}:
		default:
		}
	}
	for {
		if r, ok := s.PollNext(wake); ok {
			return r, nil
		}
		if s.Len() == 0 {
			return Result[T]{}, ErrEmpty
		}
		select {
		case <-signal:
		case <-ctx.Done():
			return Result[T]{}, context.Cause(ctx)
		}
	}
}

// Len returns the number of tasks not yet harvested, settled or not.
func (s *Set[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running) + s.ready.Len()
}

// Pending returns the number of tasks that have not settled.
func (s *Set[T]) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// Ready returns the number of settled, unharvested tasks.
func (s *Set[T]) Ready() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready.Len()
}

// AbortAll aborts every running task with reason (nil means
// [cancel.ErrCancelled]), returning how many it settled.
func (s *Set[T]) AbortAll(reason error) int {
	s.mu.Lock()
	tasks := make([]*task[T], 0, len(s.running))
	for _, t := range s.running {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()
	var n int
	for _, t := range tasks {
		if t.abort(reason) {
			n++
		}
	}
	return n
}

// AbortHandle aborts one task.
type AbortHandle struct {
	abort func(reason error) bool
	done  func() bool
	id    uint64
}

// ID returns the task id, as reported in its [Result].
func (h *AbortHandle) ID() uint64 { return h.id }

// Abort settles the task with [cancel.ErrCancelled], and cancels its
// context. It reports whether the abort won, i.e. the task had not already
// settled.
func (h *AbortHandle) Abort() bool { return h.abort(nil) }

// AbortWith is Abort with a custom reason.
func (h *AbortHandle) AbortWith(reason error) bool { return h.abort(reason) }

// Settled reports whether the task has an outcome.
func (h *AbortHandle) Settled() bool { return h.done() }
