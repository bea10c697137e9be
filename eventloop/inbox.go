package eventloop

import (
	"context"
	"sync"

	"github.com/joeycumines/go-opcore/internal/queue"
)

// Inbox carries messages into the loop from other goroutines, or other
// loops. A built-in middleware delivers them, in post order, to the handler
// set with OnMessage.
type Inbox struct {
	handler  func(msg any)
	wake     func()
	messages queue.Chunked[any]
	capacity int
	mu       sync.Mutex
	closed   bool
}

func newInbox(capacity int, wake func()) *Inbox {
	return &Inbox{capacity: capacity, wake: wake}
}

// Post queues msg and wakes the loop. It is safe to call from any
// goroutine.
func (x *Inbox) Post(msg any) error {
	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return ErrInboxClosed
	}
	if x.capacity > 0 && x.messages.Len() >= x.capacity {
		x.mu.Unlock()
		return ErrInboxFull
	}
	x.messages.Push(msg)
	x.mu.Unlock()
	x.wake()
	return nil
}

// OnMessage sets the handler. Until one is set, posted messages stay
// queued.
func (x *Inbox) OnMessage(fn func(msg any)) {
	x.mu.Lock()
	x.handler = fn
	x.mu.Unlock()
	x.wake()
}

// Close stops accepting messages. Queued messages are still delivered.
func (x *Inbox) Close() {
	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return
	}
	x.closed = true
	x.mu.Unlock()
	x.wake()
}

// Closed reports whether Close was called.
func (x *Inbox) Closed() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.closed
}

// Len returns the number of undelivered messages.
func (x *Inbox) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.messages.Len()
}

// ready reports whether drain would deliver anything.
func (x *Inbox) ready() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.handler != nil && x.messages.Len() != 0
}

// done reports whether the inbox is closed and drained.
func (x *Inbox) done() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.closed && (x.messages.Len() == 0 || x.handler == nil)
}

// drain is the middleware delivering the messages queued before the call.
func (x *Inbox) drain(_ context.Context, l *Loop) (bool, error) {
	x.mu.Lock()
	handler := x.handler
	if handler == nil {
		x.mu.Unlock()
		return false, nil
	}
	n := x.messages.Len()
	batch := make([]any, 0, n)
	for range n {
		msg, _ := x.messages.Pop()
		batch = append(batch, msg)
	}
	x.mu.Unlock()

	for _, msg := range batch {
		l.safeExecute(`inbox`, func() { handler(msg) })
	}
	return n != 0, nil
}
