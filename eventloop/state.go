package eventloop

import (
	"sync/atomic"
)

// LoopState is the lifecycle state of a [Loop].
//
//	StateAwake → StateRunning            [first Turn]
//	StateAwake → StateTerminated         [Close before any Turn]
//	StateRunning → StateTerminating      [Close, fatal reactor error]
//	StateTerminating → StateTerminated   [shutdown complete]
//	StateTerminated → (terminal)
//
// Transitions out of non-terminal states use TryTransition (CAS); the
// terminal state is stored.
type LoopState uint64

const (
	// StateAwake indicates the loop has been created but never turned.
	StateAwake LoopState = iota
	// StateRunning indicates the loop has been turned at least once.
	StateRunning
	// StateTerminating indicates shutdown was requested but has not finished.
	StateTerminating
	// StateTerminated indicates the loop has shut down.
	StateTerminated
)

func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// FastState is a lock-free state machine with cache-line padding.
type FastState struct { // betteralign:ignore
	_ [64]byte      //nolint:unused
	v atomic.Uint64 // LoopState
	_ [56]byte      //nolint:unused
}

// Load returns the current state.
func (s *FastState) Load() LoopState {
	return LoopState(s.v.Load())
}

// Store sets the state without validation. Only use it for the terminal
// state.
func (s *FastState) Store(state LoopState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically move from one state to another.
func (s *FastState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// IsTerminal reports whether the state is StateTerminated.
func (s *FastState) IsTerminal() bool {
	return s.Load() == StateTerminated
}

// CanAcceptWork reports whether new calls may be dispatched.
func (s *FastState) CanAcceptWork() bool {
	state := s.Load()
	return state == StateAwake || state == StateRunning
}

// Status is what a turn reports to the host.
type Status int

const (
	// Idle means nothing is pending: no in-flight tasks, no unresolved
	// completions, no armed timers and no queued callbacks.
	Idle Status = iota
	// Running means more work will arrive without further input from
	// the host.
	Running
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	default:
		return "Unknown"
	}
}
