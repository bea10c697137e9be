// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package cancel implements cooperative cancellation tokens.
//
// A [Handle] is independent of any resource, and may be observed by many
// tasks. Cancellation is cooperative: firing a handle invokes registered
// hooks and closes [Handle.Done], and it is up to each observer to unwind.
// Tasks spawned with a handle (see the taskset package) settle with
// [ErrCancelled] immediately, and their late results are discarded.
//
// A Handle is itself a resource, so script can hold it by id. Closing it
// from the resource table cancels it.
//
// Usage:
//
//	h := cancel.New()
//	stop := h.OnCancel(func(err error) {
//	    log.Println("cancelled:", err)
//	})
//	defer stop()
//
//	ctx, release := h.Context(parent)
//	defer release()
//	// pass ctx to the blocking work
//
//	h.Cancel(nil)
package cancel

import (
	"context"
	"sync"

	"github.com/joeycumines/go-opcore/operr"
	"github.com/joeycumines/go-opcore/resource"
)

// ErrCancelled is the default cancellation error. Any error of kind
// [operr.KindCancelled] matches it via errors.Is.
var ErrCancelled = operr.New(operr.KindCancelled, "operation canceled")

// Handle is a cancellation token. It is safe for concurrent use.
type Handle struct { //nolint:govet // betteralign:ignore
	resource.Named
	hooks  map[uint64]func(err error)
	done   chan struct{}
	err    error
	nextID uint64
	mu     sync.Mutex
}

var _ resource.Resource = (*Handle)(nil)

// New returns a handle that has not fired.
func New() *Handle {
	return &Handle{
		Named: "cancellation",
		done:  make(chan struct{}),
	}
}

// Cancel fires the handle. The first call wins; later calls are no-ops.
// A nil reason means [ErrCancelled]. A reason that is not already
// cancellation-class is wrapped so callers can still tell "cancelled"
// apart from "failed".
//
// Hooks run synchronously on the calling goroutine, outside the lock,
// in registration order.
func (h *Handle) Cancel(reason error) {
	h.mu.Lock()
	if h.err != nil {
		h.mu.Unlock()
		return
	}
	switch {
	case reason == nil:
		h.err = ErrCancelled
	case operr.KindOf(reason) == operr.KindCancelled:
		h.err = reason
	default:
		h.err = operr.Wrap(operr.KindCancelled, "operation canceled", reason)
	}
	err := h.err
	hooks := h.sortedHooks()
	h.hooks = nil
	close(h.done)
	h.mu.Unlock()

	for _, fn := range hooks {
		fn(err)
	}
}

// Cancelled reports whether the handle has fired.
func (h *Handle) Cancelled() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Err returns nil before the handle fires, and the cancellation error
// after.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Done is closed when the handle fires.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// OnCancel registers fn to run when the handle fires. If the handle has
// already fired, fn runs immediately. The returned func unregisters fn,
// and reports whether it did so before fn was invoked.
func (h *Handle) OnCancel(fn func(err error)) (stop func() bool) {
	if fn == nil {
		return func() bool { return false }
	}
	h.mu.Lock()
	if h.err != nil {
		err := h.err
		h.mu.Unlock()
		fn(err)
		return func() bool { return false }
	}
	if h.hooks == nil {
		h.hooks = make(map[uint64]func(err error))
	}
	id := h.nextID
	h.nextID++
	h.hooks[id] = fn
	h.mu.Unlock()

	return func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.hooks[id]; !ok {
			return false
		}
		delete(h.hooks, id)
		return true
	}
}

// Context derives a context from parent that is cancelled, with the
// handle's error as its cause, when the handle fires. Call release once
// the context is no longer needed.
func (h *Handle) Context(parent context.Context) (ctx context.Context, release func()) {
	ctx, cancel := context.WithCancelCause(parent)
	stop := h.OnCancel(func(err error) { cancel(err) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// Close cancels the handle. It is the resource table's shutdown hook.
func (h *Handle) Close() {
	h.Cancel(nil)
}

func (h *Handle) sortedHooks() []func(err error) {
	if len(h.hooks) == 0 {
		return nil
	}
	hooks := make([]func(err error), 0, len(h.hooks))
	for id := uint64(0); id < h.nextID; id++ {
		if fn, ok := h.hooks[id]; ok {
			hooks = append(hooks, fn)
		}
	}
	return hooks
}
