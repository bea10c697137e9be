// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package reactor provides the timer and I/O readiness abstraction the op
// runtime is built on.
//
// A [Reactor] owns a monotonic clock, rearmable one-shot [Timer] values, a
// substrate for spawning async work, and a blocking [Reactor.Poll] that
// returns once a timer fires, I/O becomes ready, or [Reactor.Wake] is
// called. Exactly one goroutine (the loop goroutine) drives Poll, and timer
// callbacks run on it.
//
// Two implementations are provided: [PollReactor] (epoll on Linux, kqueue
// on Darwin), which can also watch file descriptors, and the portable
// [ChanReactor]. [New] picks the best available.
package reactor

import (
	"context"
	"errors"
	"time"
)

// DefaultMaxWait caps a single blocking Poll.
const DefaultMaxWait = 10 * time.Second

// Standard errors.
var (
	ErrReactorClosed       = errors.New("reactor: closed")
	ErrFDOutOfRange        = errors.New("reactor: fd out of range (max 100000000)")
	ErrFDAlreadyRegistered = errors.New("reactor: fd already registered")
	ErrFDNotRegistered     = errors.New("reactor: fd not registered")
)

// Reactor is the pluggable timer and I/O substrate.
//
// Now, NewTimer, Poll and ArmedTimers, along with every method of the
// returned timers, must only be called from the goroutine that drives Poll.
// Spawn and Wake are safe for concurrent use.
type Reactor interface {
	// Now returns the current monotonic instant.
	Now() Instant

	// NewTimer returns a disarmed timer that runs fn on the polling
	// goroutine each time it fires.
	NewTimer(fn func()) *Timer

	// Spawn runs fn asynchronously.
	Spawn(fn func())

	// Poll runs due timers and dispatches ready I/O. If block is true it
	// first waits, bounded by the next timer deadline and the configured
	// maximum wait, until something is ready or Wake is called.
	Poll(ctx context.Context, block bool) error

	// Wake interrupts a blocked (or the next) Poll.
	Wake()

	// ArmedTimers returns the number of armed timers.
	ArmedTimers() int

	Close() error
}

// Instant is an opaque point on the reactor's monotonic clock.
type Instant struct {
	t time.Time
}

// Add returns the instant d after i.
func (i Instant) Add(d time.Duration) Instant { return Instant{t: i.t.Add(d)} }

// Sub returns the duration i-u.
func (i Instant) Sub(u Instant) time.Duration { return i.t.Sub(u.t) }

// Before reports whether i is before u.
func (i Instant) Before(u Instant) bool { return i.t.Before(u.t) }

// IsZero reports whether i is the zero Instant.
func (i Instant) IsZero() bool { return i.t.IsZero() }

func now() Instant { return Instant{t: time.Now()} }

type (
	// Option configures a reactor.
	Option interface {
		applyOption(*options) error
	}

	optionImpl struct {
		applyFunc func(*options) error
	}

	options struct {
		spawn   func(fn func())
		maxWait time.Duration
	}
)

func (o *optionImpl) applyOption(opts *options) error {
	return o.applyFunc(opts)
}

// WithMaxWait caps how long a single blocking Poll may wait. Non-positive
// values mean [DefaultMaxWait].
func WithMaxWait(d time.Duration) Option {
	return &optionImpl{func(opts *options) error {
		if d <= 0 {
			d = DefaultMaxWait
		}
		opts.maxWait = d
		return nil
	}}
}

// WithSpawner replaces the default substrate (a new goroutine per call).
func WithSpawner(spawn func(fn func())) Option {
	return &optionImpl{func(opts *options) error {
		opts.spawn = spawn
		return nil
	}}
}

func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{
		maxWait: DefaultMaxWait,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOption(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.spawn == nil {
		cfg.spawn = func(fn func()) { go fn() }
	}
	return cfg, nil
}

// pollTimeout returns how long Poll may wait.
func pollTimeout(q *timerQueue, block bool, maxWait time.Duration) time.Duration {
	if !block {
		return 0
	}
	d := maxWait
	if when, ok := q.next(); ok {
		delay := when.Sub(now())
		if delay < 0 {
			delay = 0
		}
		if delay < d {
			d = delay
		}
	}
	return d
}

// timeoutMillis rounds d up to whole milliseconds, for the poll syscalls.
func timeoutMillis(d time.Duration) int {
	if d > 0 && d < time.Millisecond {
		return 1
	}
	return int((d + time.Millisecond - 1) / time.Millisecond)
}
