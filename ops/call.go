package ops

import (
	"github.com/joeycumines/go-opcore/cancel"
	"github.com/joeycumines/go-opcore/opstate"
)

// Call describes the op call being dispatched. The loop stores it in the op
// state for the duration of each handler invocation; see [CurrentCall].
type Call struct {
	cancel *cancel.Handle
	Name   string
	// ID is the completion id of an async call, and zero for sync calls.
	ID    uint32
	Async bool
}

// TieCancel ties an async call to h: once h fires, the call settles with
// its cancellation error, whether or not the future honors its context.
// It has no effect on sync calls.
func (c *Call) TieCancel(h *cancel.Handle) {
	c.cancel = h
}

// CancelHandle returns the handle passed to TieCancel.
func (c *Call) CancelHandle() *cancel.Handle {
	return c.cancel
}

// CurrentCall returns the call being dispatched. It panics if called
// outside a handler invocation.
func CurrentCall(s *opstate.State) *Call {
	return *opstate.Borrow[*Call](s)
}
