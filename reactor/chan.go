package reactor

import (
	"context"
	"sync/atomic"
	"time"
)

// ChanReactor is a portable [Reactor] that waits on a channel and a
// runtime timer. It cannot watch file descriptors.
type ChanReactor struct {
	wake   chan struct{}
	opts   *options
	timers timerQueue
	closed atomic.Bool
}

var _ Reactor = (*ChanReactor)(nil)

// NewChanReactor returns a portable reactor.
func NewChanReactor(opts ...Option) (*ChanReactor, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &ChanReactor{
		wake: make(chan struct{}, 1),
		opts: cfg,
	}, nil
}

func (r *ChanReactor) Now() Instant { return now() }

func (r *ChanReactor) NewTimer(fn func()) *Timer { return r.timers.newTimer(fn) }

func (r *ChanReactor) Spawn(fn func()) { r.opts.spawn(fn) }

func (r *ChanReactor) ArmedTimers() int { return r.timers.len() }

func (r *ChanReactor) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *ChanReactor) Poll(ctx context.Context, block bool) error {
	if r.closed.Load() {
		return ErrReactorClosed
	}
	if err := ctx.Err(); err != nil {
		return context.Cause(ctx)
	}

	if d := pollTimeout(&r.timers, block, r.opts.maxWait); d > 0 {
		t := time.NewTimer(d)
		select {
		case <-r.wake:
		case <-t.C:
		case <-ctx.Done():
		}
		t.Stop()
	} else {
		select {
		case <-r.wake:
		default:
		}
	}

	r.timers.fireDue(now())
	return nil
}

func (r *ChanReactor) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	r.Wake()
	return nil
}
