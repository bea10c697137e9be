// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/joeycumines/go-opcore/cancel"
	"github.com/joeycumines/go-opcore/operr"
	"github.com/joeycumines/go-opcore/ops"
	"github.com/joeycumines/go-opcore/opstate"
	"github.com/joeycumines/go-opcore/reactor"
	"github.com/joeycumines/go-opcore/resource"
)

// Core op names.
const (
	OpClose        = `op_close`
	OpTryClose     = `op_try_close`
	OpResources    = `op_resources`
	OpRead         = `op_read`
	OpWrite        = `op_write`
	OpShutdown     = `op_shutdown`
	OpSleep        = `op_sleep`
	OpCancelHandle = `op_cancel_handle`
	OpCancel       = `op_cancel`
	OpMetrics      = `op_metrics`
)

// RegisterCoreOps registers the built-in ops:
//
//   - op_close(rid): closes a resource, failing with NotFound if it is not
//     open
//   - op_try_close(rid): closes a resource, if open
//   - op_resources(): lists the open resources as []resource.Entry
//   - op_read(rid, limit?, cancelRid?): async, reads up to limit bytes,
//     resolving nil at end of stream
//   - op_write(rid, bytes, cancelRid?): async, writes, giving the count
//   - op_shutdown(rid): async, shuts the write side down
//   - op_sleep(ms, cancelRid?): async, resolves after a reactor timer
//   - op_cancel_handle(): adds a new cancel.Handle, giving its rid
//   - op_cancel(rid): fires a cancel.Handle
//   - op_metrics(): the aggregate ops.Metrics
//
// The optional cancelRid ties the call to a cancel handle resource.
//
// Handlers expect the op state of a [Loop].
func RegisterCoreOps(reg *ops.Registry) error {
	return reg.Register(
		ops.Decl{Name: OpClose, Sync: opClose},
		ops.Decl{Name: OpTryClose, Sync: opTryClose},
		ops.Decl{Name: OpResources, Sync: opResources},
		ops.Decl{Name: OpRead, Async: opRead},
		ops.Decl{Name: OpWrite, Async: opWrite},
		ops.Decl{Name: OpShutdown, Async: opShutdown},
		ops.Decl{Name: OpSleep, Async: opSleep},
		ops.Decl{Name: OpCancelHandle, Sync: opCancelHandle},
		ops.Decl{Name: OpCancel, Sync: opCancel},
		ops.Decl{Name: OpMetrics, Sync: opMetrics},
	)
}

func resourcesOf(s *opstate.State) *resource.Table {
	return *opstate.Borrow[*resource.Table](s)
}

func metricsOf(s *opstate.State) *ops.Tracker {
	return *opstate.Borrow[*ops.Tracker](s)
}

func opClose(s *opstate.State, args ops.Args) (any, error) {
	rid, err := args.ResourceID(0)
	if err != nil {
		return nil, err
	}
	return nil, resourcesOf(s).Close(rid)
}

func opTryClose(s *opstate.State, args ops.Args) (any, error) {
	rid, err := args.ResourceID(0)
	if err != nil {
		return nil, err
	}
	if err := resourcesOf(s).Close(rid); err != nil && !resource.IsNotFound(err) {
		return nil, err
	}
	return nil, nil
}

func opResources(s *opstate.State, _ ops.Args) (any, error) {
	return resourcesOf(s).Names(), nil
}

// tieCancel ties the current call to the cancel handle at argument i, if
// present.
func tieCancel(s *opstate.State, args ops.Args, i int) error {
	if i >= args.Len() || args[i] == nil {
		return nil
	}
	rid, err := args.ResourceID(i)
	if err != nil {
		return err
	}
	h, err := resource.Get[*cancel.Handle](resourcesOf(s), rid)
	if err != nil {
		return err
	}
	ops.CurrentCall(s).TieCancel(h)
	return nil
}

func opRead(s *opstate.State, args ops.Args) (ops.Future, error) {
	rid, err := args.ResourceID(0)
	if err != nil {
		return nil, err
	}
	limit, err := args.IntOr(1, 64*1024)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, operr.Newf(operr.KindInvalidArgument, "read limit must be positive, got %d", limit)
	}
	r, err := resourcesOf(s).GetAny(rid)
	if err != nil {
		return nil, err
	}
	if err := tieCancel(s, args, 2); err != nil {
		return nil, err
	}
	metrics := metricsOf(s)
	return func(ctx context.Context) (any, error) {
		b, err := r.Read(ctx, int(limit))
		err = resource.Attribute(r, err)
		metrics.Received(OpRead, len(b))
		if errors.Is(err, io.EOF) && len(b) == 0 {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return b, nil
	}, nil
}

func opWrite(s *opstate.State, args ops.Args) (ops.Future, error) {
	rid, err := args.ResourceID(0)
	if err != nil {
		return nil, err
	}
	p, err := args.Bytes(1)
	if err != nil {
		return nil, err
	}
	r, err := resourcesOf(s).GetAny(rid)
	if err != nil {
		return nil, err
	}
	if err := tieCancel(s, args, 2); err != nil {
		return nil, err
	}
	// the caller may reuse its buffer once the handler returns
	p = append([]byte(nil), p...)
	metrics := metricsOf(s)
	return func(ctx context.Context) (any, error) {
		n, err := r.Write(ctx, p)
		err = resource.Attribute(r, err)
		metrics.Sent(OpWrite, n)
		if err != nil {
			return nil, err
		}
		return n, nil
	}, nil
}

func opShutdown(s *opstate.State, args ops.Args) (ops.Future, error) {
	rid, err := args.ResourceID(0)
	if err != nil {
		return nil, err
	}
	r, err := resourcesOf(s).GetAny(rid)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (any, error) {
		return nil, resource.Attribute(r, r.Shutdown(ctx))
	}, nil
}

func opSleep(s *opstate.State, args ops.Args) (ops.Future, error) {
	ms, err := args.IntOr(0, 0)
	if err != nil {
		return nil, err
	}
	if ms < 0 {
		return nil, operr.Newf(operr.KindInvalidArgument, "sleep duration must not be negative, got %d", ms)
	}
	if err := tieCancel(s, args, 1); err != nil {
		return nil, err
	}
	loop := *opstate.Borrow[*Loop](s)
	d := time.Duration(ms) * time.Millisecond
	return func(ctx context.Context) (any, error) {
		// the timer lives on the loop goroutine, armed only once the body runs
		var timer *reactor.Timer
		fired := make(chan struct{})
		if err := loop.Submit(func() {
			if ctx.Err() != nil {
				return
			}
			t, err := loop.AfterFunc(d, func() { close(fired) })
			if err == nil {
				timer = t
			}
		}); err != nil {
			return nil, err
		}
		select {
		case <-fired:
			return nil, nil
		case <-ctx.Done():
			_ = loop.Submit(func() {
				if timer != nil {
					timer.Stop()
				}
			})
			return nil, context.Cause(ctx)
		}
	}, nil
}

func opCancelHandle(s *opstate.State, _ ops.Args) (any, error) {
	return resourcesOf(s).Add(cancel.New()), nil
}

func opCancel(s *opstate.State, args ops.Args) (any, error) {
	rid, err := args.ResourceID(0)
	if err != nil {
		return nil, err
	}
	h, err := resource.Get[*cancel.Handle](resourcesOf(s), rid)
	if err != nil {
		return nil, err
	}
	h.Cancel(nil)
	return nil, nil
}

func opMetrics(s *opstate.State, _ ops.Args) (any, error) {
	return metricsOf(s).Aggregate(), nil
}
