//go:build linux || darwin

package reactor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// maxFDs is the initial size of the directly indexed fd table.
const maxFDs = 1024

// maxFDLimit is the largest fd the table may grow to hold.
const maxFDLimit = 100000000

// IOEvents is a set of I/O readiness conditions.
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

// IOCallback receives the ready events for a registered fd. It runs on the
// polling goroutine.
type IOCallback func(IOEvents)

type fdInfo struct {
	callback IOCallback
	events   IOEvents
	active   bool
}

// PollReactor is a [Reactor] backed by epoll (Linux) or kqueue (Darwin),
// woken through an eventfd or self-pipe. It can watch file descriptors via
// [PollReactor.RegisterFD].
type PollReactor struct { //nolint:govet // betteralign:ignore
	poller      fastPoller
	opts        *options
	timers      timerQueue
	wakeFD      int
	wakeWriteFD int
	// wakeMu keeps Close from releasing the wake fds under a Wake
	wakeMu      sync.RWMutex
	wakePending atomic.Bool
	closed      atomic.Bool
}

var _ Reactor = (*PollReactor)(nil)

// NewPollReactor returns a reactor backed by the platform poller.
func NewPollReactor(opts ...Option) (*PollReactor, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	r := &PollReactor{opts: cfg}
	if err := r.poller.init(); err != nil {
		return nil, err
	}
	r.wakeFD, r.wakeWriteFD, err = createWakeFD()
	if err != nil {
		_ = r.poller.close()
		return nil, err
	}
	if err := r.poller.registerFD(r.wakeFD, EventRead, r.onWake); err != nil {
		_ = r.closeWakeFDs()
		_ = r.poller.close()
		return nil, err
	}
	return r, nil
}

func (r *PollReactor) Now() Instant { return now() }

func (r *PollReactor) NewTimer(fn func()) *Timer { return r.timers.newTimer(fn) }

func (r *PollReactor) Spawn(fn func()) { r.opts.spawn(fn) }

func (r *PollReactor) ArmedTimers() int { return r.timers.len() }

// Wake is deduplicated: at most one signal is outstanding until the
// polling goroutine drains it.
// It is safe to call concurrently with Close.
func (r *PollReactor) Wake() {
	if r.closed.Load() || !r.wakePending.CompareAndSwap(false, true) {
		return
	}
	r.wakeMu.RLock()
	defer r.wakeMu.RUnlock()
	if r.closed.Load() {
		return
	}
	if err := signalWakeFD(r.wakeWriteFD); err != nil && !errors.Is(err, unix.EAGAIN) {
		r.wakePending.Store(false)
	}
}

func (r *PollReactor) onWake(IOEvents) {
	drainWakeFD(r.wakeFD)
	r.wakePending.Store(false)
}

func (r *PollReactor) Poll(ctx context.Context, block bool) error {
	if r.closed.Load() {
		return ErrReactorClosed
	}
	if err := ctx.Err(); err != nil {
		return context.Cause(ctx)
	}

	timeout := timeoutMillis(pollTimeout(&r.timers, block, r.opts.maxWait))
	if timeout > 0 {
		stop := context.AfterFunc(ctx, r.Wake)
		defer stop()
	}

	if _, err := r.poller.poll(timeout); err != nil {
		if r.closed.Load() {
			return ErrReactorClosed
		}
		return err
	}

	r.timers.fireDue(now())
	return nil
}

// RegisterFD watches fd for events. The callback runs on the polling
// goroutine, and may still run once after UnregisterFD returns, so the fd
// must only be closed once the caller knows no callback is in flight.
func (r *PollReactor) RegisterFD(fd int, events IOEvents, cb IOCallback) error {
	if r.closed.Load() {
		return ErrReactorClosed
	}
	return r.poller.registerFD(fd, events, cb)
}

// UnregisterFD stops watching fd.
func (r *PollReactor) UnregisterFD(fd int) error {
	if fd == r.wakeFD {
		return ErrFDNotRegistered
	}
	return r.poller.unregisterFD(fd)
}

// ModifyFD changes the events watched for fd.
func (r *PollReactor) ModifyFD(fd int, events IOEvents) error {
	return r.poller.modifyFD(fd, events)
}

// Close releases the poller and wake fds. It must not be called
// concurrently with Poll.
func (r *PollReactor) Close() error {
	r.wakeMu.Lock()
	defer r.wakeMu.Unlock()
	if r.closed.Swap(true) {
		return nil
	}
	return errors.Join(r.poller.close(), r.closeWakeFDs())
}

func (r *PollReactor) closeWakeFDs() error {
	err := unix.Close(r.wakeFD)
	if r.wakeWriteFD != r.wakeFD {
		err = errors.Join(err, unix.Close(r.wakeWriteFD))
	}
	return err
}

// growFDs ensures fds can be indexed by fd.
func growFDs(fds []fdInfo, fd int) []fdInfo {
	if fd < len(fds) {
		return fds
	}
	newSize := fd*2 + 1
	if newSize < maxFDs {
		newSize = maxFDs
	}
	if newSize > maxFDLimit {
		newSize = maxFDLimit + 1
	}
	grown := make([]fdInfo, newSize)
	copy(grown, fds)
	return grown
}
