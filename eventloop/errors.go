package eventloop

import (
	"errors"

	"github.com/joeycumines/go-opcore/operr"
)

// Standard errors.
var (
	// ErrLoopTerminated is returned, and used to reject outstanding
	// completions, once the loop has shut down.
	ErrLoopTerminated = operr.New(operr.KindTerminated, "eventloop: loop has been terminated")

	// ErrLoopAlreadyRunning is returned when Turn is called while another
	// goroutine is turning the loop.
	ErrLoopAlreadyRunning = errors.New("eventloop: loop is already running")

	// ErrReentrantRun is returned when Turn or RunEventLoop is called from
	// within a turn.
	ErrReentrantRun = errors.New("eventloop: cannot turn the loop from within the loop")

	// ErrInboxClosed is returned when posting to a closed inbox.
	ErrInboxClosed = errors.New("eventloop: inbox closed")

	// ErrInboxFull is returned when posting to an inbox at capacity.
	ErrInboxFull = errors.New("eventloop: inbox full")
)

var errHandlerPanicked = operr.New(operr.KindSubstrate, "op handler panicked")

func opNotFound(name string) error {
	return operr.Newf(operr.KindNotFound, "op %q is not registered", name)
}

func opWrongKind(name string, async bool) error {
	if async {
		return operr.Newf(operr.KindInvalidArgument, "op %q is async, use CallAsync", name)
	}
	return operr.Newf(operr.KindInvalidArgument, "op %q is sync, use CallSync", name)
}
