// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package resource implements the resource table: small integer handles
// mapped to polymorphic resource objects, owned by one execution context.
//
// Capabilities are dispatched through the [Resource] interface. Concrete
// resources embed [Base], which answers every capability with an
// unsupported error, and override what they actually implement. Identity
// (the concrete type) is recovered with [Get] and [Take].
package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/joeycumines/go-opcore/operr"
)

// ID is a resource handle. Ids are unique among open resources of one
// [Table], and are allocated monotonically, so a closed id is not handed out
// again until the id space wraps.
type ID uint32

// Resource is the capability set of a table entry.
//
// Read and Write may suspend (e.g. waiting on a socket) or return
// immediately; the implementation decides. They must honor ctx.
type Resource interface {
	// Name is a short, human-readable name for diagnostics.
	Name() string

	// Read returns at most limit bytes. A nil error with an empty result
	// means nothing is available yet; io.EOF means end of stream.
	Read(ctx context.Context, limit int) ([]byte, error)

	Write(ctx context.Context, p []byte) (int, error)

	// Shutdown closes the write side, flushing if needed.
	Shutdown(ctx context.Context) error

	// Close is the shutdown hook, invoked exactly once by [Table.Close] or
	// [Table.CloseAll]. It is not invoked for resources removed via [Take].
	Close()

	// SizeHint reports the remaining readable size. bounded is false if
	// the upper bound is unknown.
	SizeHint() (lower, upper uint64, bounded bool)
}

var (
	// ErrBadResource indicates a resource id with no live entry.
	ErrBadResource = operr.New(operr.KindNotFound, "bad resource id")

	// ErrBadResourceType indicates a live entry with a different concrete
	// type than requested. It is NotFound-class.
	ErrBadResourceType = operr.New(operr.KindNotFound, "bad resource type")
)

// Unsupported returns the error for a capability a resource does not
// implement.
func Unsupported(name, capability string) error {
	return operr.Newf(operr.KindUnsupported, "resource %q does not support %s", name, capability)
}

// Base provides default implementations of every capability, each of which
// fails with an [operr.KindUnsupported] error. Embed it and override.
//
// Base cannot see the Name of the type embedding it, so its errors are
// anonymous until passed through [Attribute]. Types with a fixed name may
// embed [Named] instead.
type Base struct{}

func (Base) Name() string { return "unknown" }

func (Base) Read(context.Context, int) ([]byte, error) {
	return nil, &anonymousUnsupported{capability: "read"}
}

func (Base) Write(context.Context, []byte) (int, error) {
	return 0, &anonymousUnsupported{capability: "write"}
}

func (Base) Shutdown(context.Context) error {
	return &anonymousUnsupported{capability: "shutdown"}
}

func (Base) Close() {}

func (Base) SizeHint() (lower, upper uint64, bounded bool) { return 0, 0, false }

// anonymousUnsupported is raised by [Base].
type anonymousUnsupported struct {
	capability string
}

func (e *anonymousUnsupported) Error() string {
	return "resource does not support " + e.capability
}

func (e *anonymousUnsupported) OpErrorKind() operr.Kind { return operr.KindUnsupported }

func (e *anonymousUnsupported) Is(target error) bool {
	return target == operr.ErrUnsupported
}

// Attribute names r in an unsupported error raised by an embedded [Base].
// Any other error, including nil, is returned as is.
func Attribute(r Resource, err error) error {
	var e *anonymousUnsupported
	if errors.As(err, &e) {
		return Unsupported(r.Name(), e.capability)
	}
	return err
}

// Named is a [Base] that reports a fixed name in its unsupported errors.
type Named string

func (n Named) Name() string { return string(n) }

func (n Named) Read(context.Context, int) ([]byte, error) {
	return nil, Unsupported(string(n), "read")
}

func (n Named) Write(context.Context, []byte) (int, error) {
	return 0, Unsupported(string(n), "write")
}

func (n Named) Shutdown(context.Context) error {
	return Unsupported(string(n), "shutdown")
}

func (Named) Close() {}

func (Named) SizeHint() (lower, upper uint64, bounded bool) { return 0, 0, false }

func badResource(id ID) error {
	return fmt.Errorf("%w: %d", ErrBadResource, id)
}

func badResourceType(id ID, name string, want any) error {
	return fmt.Errorf("%w: id %d is %q, not %T", ErrBadResourceType, id, name, want)
}

// IsNotFound reports whether err is a NotFound-class error.
func IsNotFound(err error) bool {
	return errors.Is(err, operr.ErrNotFound)
}
