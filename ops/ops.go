// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package ops defines the op handler ABI, the registry of named ops, and
// per-op diagnostics.
//
// An op is either sync, completing inline on the loop goroutine, or async,
// in which case its handler runs inline to validate arguments and capture
// state, and returns a [Future] that the loop spawns onto its task set.
//
// Handlers receive the loop's [opstate.State]. Async futures run off the
// loop goroutine and must not touch it.
package ops

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/joeycumines/go-opcore/opstate"
)

type (
	// SyncHandler completes an op inline.
	SyncHandler func(s *opstate.State, args Args) (any, error)

	// AsyncHandler starts an op. A non-nil error fails the call at once,
	// without spawning anything.
	AsyncHandler func(s *opstate.State, args Args) (Future, error)

	// Future is the body of an async op. It runs on the reactor's
	// substrate, and must honor ctx, which is cancelled if the call is
	// cancelled or the loop shuts down.
	Future func(ctx context.Context) (any, error)

	// Decl declares one op. Exactly one of Sync and Async must be set.
	Decl struct {
		Sync  SyncHandler
		Async AsyncHandler
		Name  string
	}
)

// IsAsync reports whether the op is async.
func (d Decl) IsAsync() bool { return d.Async != nil }

var (
	// ErrDuplicateOp is returned when registering a name twice.
	ErrDuplicateOp = errors.New("ops: duplicate op name")

	// ErrInvalidDecl is returned for a declaration without a name, or
	// without exactly one handler.
	ErrInvalidDecl = errors.New("ops: invalid op declaration")
)

// Registry maps op names to declarations. It is safe for concurrent use.
type Registry struct {
	decls map[string]Decl
	mu    sync.RWMutex
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{decls: make(map[string]Decl)}
}

// Register adds decls. It is all-or-nothing: if any declaration is invalid
// or its name is taken, nothing is added.
func (r *Registry) Register(decls ...Decl) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.decls == nil {
		r.decls = make(map[string]Decl)
	}
	seen := make(map[string]struct{}, len(decls))
	for _, d := range decls {
		if d.Name == "" || (d.Sync == nil) == (d.Async == nil) {
			return fmt.Errorf("%w: %q", ErrInvalidDecl, d.Name)
		}
		if _, ok := r.decls[d.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateOp, d.Name)
		}
		if _, ok := seen[d.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateOp, d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	for _, d := range decls {
		r.decls[d.Name] = d
	}
	return nil
}

// MustRegister is Register, panicking on error.
func (r *Registry) MustRegister(decls ...Decl) {
	if err := r.Register(decls...); err != nil {
		panic(err)
	}
}

// Lookup returns the declaration for name.
func (r *Registry) Lookup(name string) (Decl, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decls[name]
	return d, ok
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.decls))
	for name := range r.decls {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
