package eventloop

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/joeycumines/go-opcore/completion"
	"github.com/joeycumines/go-opcore/ops"
	"github.com/joeycumines/go-opcore/opstate"
	"github.com/joeycumines/go-opcore/taskset"
)

// CompletionHandle receives the outcome of one async call, on the loop
// goroutine. Exactly one of its methods is called, once.
type CompletionHandle interface {
	Resolve(value any)
	Reject(err error)
}

// CompletionFuncs adapts a pair of functions to [CompletionHandle]. Either
// may be nil.
type CompletionFuncs struct {
	OnResolve func(value any)
	OnReject  func(err error)
}

func (f CompletionFuncs) Resolve(value any) {
	if f.OnResolve != nil {
		f.OnResolve(value)
	}
}

func (f CompletionFuncs) Reject(err error) {
	if f.OnReject != nil {
		f.OnReject(err)
	}
}

// CallSync runs a sync op inline. It must be called on the loop goroutine,
// or while the loop is not being turned.
func (l *Loop) CallSync(name string, args ...any) (any, error) {
	if !l.state.CanAcceptWork() {
		return nil, ErrLoopTerminated
	}
	decl, ok := l.registry.Lookup(name)
	if !ok {
		return nil, opNotFound(name)
	}
	if decl.IsAsync() {
		return nil, opWrongKind(name, true)
	}

	restore := l.enterCall(&ops.Call{Name: name})
	defer restore()

	l.metrics.Dispatch(name, false)
	v, err := decl.Sync(l.opState, ops.Args(args))
	l.metrics.Complete(name, false, err)
	if err != nil {
		l.logFailure(name, 0, err)
		return nil, err
	}
	return v, nil
}

// CallAsync starts an async op, binding h to a new completion id. The
// handler runs inline; if it fails or panics, h is rejected before
// CallAsync returns and the id is released. Otherwise the future it returns is spawned, and
// h settles during a later turn. It must be called on the loop goroutine,
// or while the loop is not being turned.
//
// The returned error is the immediate failure, if any, already delivered
// to h.
func (l *Loop) CallAsync(name string, h CompletionHandle, args ...any) (completion.ID, error) {
	if h == nil {
		h = CompletionFuncs{}
	}
	if !l.state.CanAcceptWork() {
		l.safeExecute(name, func() { h.Reject(ErrLoopTerminated) })
		return 0, ErrLoopTerminated
	}

	pc := &pendingCall{handle: h, name: name}
	id := l.completions.Allocate(pc)

	decl, ok := l.registry.Lookup(name)
	if !ok {
		return id, l.failCall(id, pc, opNotFound(name), false)
	}
	if !decl.IsAsync() {
		return id, l.failCall(id, pc, opWrongKind(name, false), false)
	}

	call := &ops.Call{Name: name, ID: uint32(id), Async: true}
	restore := l.enterCall(call)
	defer restore()

	l.metrics.Dispatch(name, true)

	future, err := l.startAsync(decl, args)
	if err != nil {
		return id, l.failCall(id, pc, err, true)
	}
	if future == nil {
		future = func(context.Context) (any, error) { return nil, nil }
	}

	opts := []taskset.SpawnOption{taskset.WithTag(id)}
	if ch := call.CancelHandle(); ch != nil {
		opts = append(opts, taskset.WithCancel(ch))
	}
	pc.abort = l.tasks.Spawn(l.ctx, future, opts...)

	return id, nil
}

// startAsync runs the async handler, converting a panic into a substrate
// failure.
func (l *Loop) startAsync(decl ops.Decl, args []any) (future ops.Future, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Err().
				Str(`op`, decl.Name).
				Any(`panic`, r).
				Str(`stack`, string(debug.Stack())).
				Log(`op handler panicked`)
			future = nil
			err = fmt.Errorf("%w: %v", errHandlerPanicked, r)
		}
	}()
	return decl.Async(l.opState, ops.Args(args))
}

// failCall settles an async call that failed before spawning anything.
func (l *Loop) failCall(id completion.ID, pc *pendingCall, err error, dispatched bool) error {
	l.completions.Take(id)
	if dispatched {
		l.metrics.Complete(pc.name, true, err)
	}
	l.logFailure(pc.name, id, err)
	l.safeExecute(pc.name, func() { pc.handle.Reject(err) })
	return err
}

// Cancel aborts the task serving id, which then settles with
// [cancel.ErrCancelled] during a later turn. It reports false if id is
// unknown or already settled. It must be called on the loop goroutine.
func (l *Loop) Cancel(id completion.ID) bool {
	pc, ok := l.completions.Peek(id)
	if !ok || pc.abort == nil {
		return false
	}
	return pc.abort.Abort()
}

// Pending reports whether id is awaiting resolution.
func (l *Loop) Pending(id completion.ID) bool {
	return l.completions.Has(id)
}

// enterCall exposes call through [ops.CurrentCall], returning a func that
// restores the outer call (for nested dispatch).
func (l *Loop) enterCall(call *ops.Call) (restore func()) {
	outer, nested := opstate.TryTake[*ops.Call](l.opState)
	opstate.Put(l.opState, call)
	return func() {
		if nested {
			opstate.Put(l.opState, outer)
		} else {
			opstate.TryTake[*ops.Call](l.opState)
		}
	}
}
