// Package operr defines the error taxonomy shared by every layer of the op
// runtime: resource lookups, op state, cancellation and task failures.
//
// Errors are classified by [Kind]. Matching is by kind, so any error created
// with [New] or [Wrap] matches the package sentinels via [errors.Is]:
//
//	if errors.Is(err, operr.ErrNotFound) {
//	    // bad resource id, missing singleton, ...
//	}
//
// [ClassName] maps a kind to the class name surfaced to script.
package operr

import (
	"fmt"
)

// Kind categorizes an error.
type Kind uint8

const (
	// KindGeneric is an op failure with no more specific classification.
	KindGeneric Kind = iota
	// KindNotFound is a failed resource id or op state lookup.
	KindNotFound
	// KindUnsupported is a capability the concrete resource does not implement.
	KindUnsupported
	// KindCancelled is a task that observed a cancel handle or was aborted.
	KindCancelled
	// KindSubstrate is a task that terminated abnormally (panic, Goexit).
	KindSubstrate
	// KindInvalidArgument is an op invoked with arguments it cannot decode.
	KindInvalidArgument
	// KindTerminated is work rejected because the loop has shut down.
	KindTerminated
)

// String returns the snake case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindGeneric:
		return "generic"
	case KindNotFound:
		return "not_found"
	case KindUnsupported:
		return "unsupported"
	case KindCancelled:
		return "cancelled"
	case KindSubstrate:
		return "substrate"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ClassName returns the error class name exposed to script for the kind.
func ClassName(k Kind) string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindUnsupported:
		return "NotSupported"
	case KindCancelled:
		return "Interrupted"
	case KindSubstrate:
		return "Internal"
	case KindInvalidArgument:
		return "TypeError"
	case KindTerminated:
		return "Terminated"
	default:
		return "Error"
	}
}

// Error is a classified error.
type Error struct {
	Cause   error
	Message string
	Kind    Kind
}

// Sentinels for matching with [errors.Is]. Matching is by kind only.
var (
	ErrNotFound        = &Error{Kind: KindNotFound, Message: "not found"}
	ErrUnsupported     = &Error{Kind: KindUnsupported, Message: "unsupported operation"}
	ErrCancelled       = &Error{Kind: KindCancelled, Message: "operation canceled"}
	ErrSubstrate       = &Error{Kind: KindSubstrate, Message: "task terminated abnormally"}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument, Message: "invalid argument"}
	ErrTerminated      = &Error{Kind: KindTerminated, Message: "terminated"}
)

// New returns a new error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf returns a new error of the given kind, with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind. The message prefixes the cause's message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Classifier may be implemented by errors outside this package to report
// their own kind, e.g. panic wrappers.
type Classifier interface {
	OpErrorKind() Kind
}

// KindOf returns the kind of the first node in err's chain that is an
// [*Error] or a [Classifier], or KindGeneric. A classifier that wraps an
// *Error (e.g. a panic with an error value) reports its own kind.
func KindOf(err error) Kind {
	if k, ok := kindOf(err); ok {
		return k
	}
	return KindGeneric
}

func kindOf(err error) (Kind, bool) {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			return e.Kind, true
		case Classifier:
			return e.OpErrorKind(), true
		}
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		case interface{ Unwrap() []error }:
			for _, err := range u.Unwrap() {
				if k, ok := kindOf(err); ok {
					return k, true
				}
			}
			return 0, false
		default:
			return 0, false
		}
	}
	return 0, false
}

// Class returns ClassName(KindOf(err)).
func Class(err error) string {
	return ClassName(KindOf(err))
}

// IsCancelled reports whether err is a cancellation.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}
