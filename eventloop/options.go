// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"errors"
	"time"

	"github.com/joeycumines/go-opcore/completion"
	"github.com/joeycumines/go-opcore/ops"
	"github.com/joeycumines/go-opcore/reactor"
	"github.com/joeycumines/logiface"
)

// DefaultFailureLogRates limits warning logs of failing calls, per op name.
var DefaultFailureLogRates = map[time.Duration]int{
	time.Second: 1,
	time.Minute: 5,
}

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger          *logiface.Logger[logiface.Event]
	reactor         reactor.Reactor
	registry        *ops.Registry
	failureLogRates map[time.Duration]int
	middleware      []Middleware
	completionOpts  []completion.Option
	inboxCapacity   int
	coreOps         bool
}

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithLogger sets the logger. A nil logger (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithReactor sets the timer and I/O substrate. The loop does not close a
// reactor it was given. The default is [reactor.New], owned by the loop.
func WithReactor(r reactor.Reactor) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if r == nil {
			return errors.New(`eventloop: nil reactor`)
		}
		opts.reactor = r
		return nil
	}}
}

// WithCompletionCapacity sets the completion ring size (a power of two).
func WithCompletionCapacity(n int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.completionOpts = append(opts.completionOpts, completion.WithCapacity(n))
		return nil
	}}
}

// WithCompletionBase sets the first completion id.
func WithCompletionBase(id completion.ID) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.completionOpts = append(opts.completionOpts, completion.WithBase(id))
		return nil
	}}
}

// WithMiddleware appends middleware, run in order at the end of each
// turn iteration.
func WithMiddleware(mw ...Middleware) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		for _, m := range mw {
			if m == nil {
				return errors.New(`eventloop: nil middleware`)
			}
		}
		opts.middleware = append(opts.middleware, mw...)
		return nil
	}}
}

// WithInbox bounds the inbox to capacity queued messages. Zero (the
// default) means unbounded.
func WithInbox(capacity int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if capacity < 0 {
			return errors.New(`eventloop: negative inbox capacity`)
		}
		opts.inboxCapacity = capacity
		return nil
	}}
}

// WithOpRegistry sets the op registry. The default is a new registry
// holding the core ops.
func WithOpRegistry(reg *ops.Registry) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if reg == nil {
			return errors.New(`eventloop: nil op registry`)
		}
		opts.registry = reg
		opts.coreOps = false
		return nil
	}}
}

// WithFailureLogRate sets the per op name rate limits for warning logs
// of failed calls. See [DefaultFailureLogRates]. Invalid rates cause New
// to panic, per catrate.NewLimiter.
func WithFailureLogRate(rates map[time.Duration]int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.failureLogRates = rates
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		failureLogRates: DefaultFailureLogRates,
		coreOps:         true,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
