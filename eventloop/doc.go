// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package eventloop implements the execution context and driver of the op
// runtime.
//
// A [Loop] owns an op state, a resource table, a completion tracker and a
// task set, all confined to the goroutine that drives it. Script-facing
// code calls ops through [Loop.CallSync] and [Loop.CallAsync]; async ops
// run off the loop goroutine, and their outcomes are delivered back to the
// completion handle they were dispatched with, on the loop goroutine, by
// [Loop.Turn].
//
// # Driving the loop
//
// The host drives the loop by calling [Loop.Turn] repeatedly, or
// [Loop.RunEventLoop], which turns until the loop is [Idle]:
//
//	loop, err := eventloop.New(eventloop.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer loop.Close()
//
//	if _, err := loop.CallAsync("op_sleep", handle, 100); err != nil {
//	    return err
//	}
//	if err := loop.RunEventLoop(ctx, false); err != nil {
//	    return err
//	}
//
// Each turn runs due timers, waits on the reactor only when no work is
// ready, runs submitted callbacks, harvests every settled task in settle
// order (resolving or rejecting its completion handle), and then runs the
// middleware, repeating within the turn while middleware reports work.
//
// # Cancellation
//
// Cancellation is cooperative. [Loop.Cancel] and tied cancel handles settle
// the task with a cancellation error straight away, and cancel its context;
// an op body that ignores its context keeps running, but its result is
// discarded.
//
// # Thread safety
//
// Turn, RunEventLoop, CallSync, CallAsync, Cancel and AfterFunc must be
// called from the loop goroutine. [Loop.Submit], [Loop.WithState],
// [Loop.Close] and the [Inbox] may be used from any goroutine.
package eventloop
