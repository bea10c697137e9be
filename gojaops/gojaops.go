// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package gojaops binds the ops of an [eventloop.Loop] to a Goja runtime.
//
// # Binding the Adapter
//
//	loop, err := eventloop.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	runtime := goja.New()
//
//	if _, err := gojaops.Bind(loop, runtime); err != nil {
//	    log.Fatal(err)
//	}
//
//	runtime.RunString(`
//	    ops.callAsync("op_sleep", 100).then(() => console.log("slept"));
//	`)
//
//	loop.RunEventLoop(context.Background(), false)
//
// # Thread Safety
//
// A Goja runtime is not thread-safe. Scripts must run on the goroutine
// driving the loop, either between turns or from loop callbacks, which is
// where promise reactions run.
//
// # Available JavaScript Globals
//
// After binding, the global ops object provides:
//
//   - ops.call(name, ...args) → value : Call a sync op, throwing on failure
//   - ops.callAsync(name, ...args) → promise : Call an async op
//   - ops.cancel(promise | id) → boolean : Cancel an in-flight async call
//   - ops.close(rid) → undefined : Close a resource
//   - ops.resources() → [{id, name}] : List open resources
//   - ops.names() → [string] : List registered ops
//   - ops.metrics() → object : Aggregate op metrics
//
// Promises returned by callAsync carry their completion id as the
// non-enumerable property id. Failures surface as Error objects whose name
// is the error class (NotFound, NotSupported, Interrupted, Internal,
// TypeError, Terminated or Error), with the kind in the property kind.
package gojaops

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-opcore/completion"
	"github.com/joeycumines/go-opcore/eventloop"
	"github.com/joeycumines/go-opcore/internal/goid"
	"github.com/joeycumines/go-opcore/operr"
	"github.com/joeycumines/go-opcore/ops"
	"github.com/joeycumines/go-opcore/resource"
	"github.com/joeycumines/go-opcore/taskset"
)

// GlobalName is the name of the global object installed by Bind.
const GlobalName = "ops"

// Adapter bridges a Goja runtime to the ops of a loop.
type Adapter struct {
	loop    *eventloop.Loop
	runtime *goja.Runtime
	// flush runs the runtime's job queue, once promises are settled from Go.
	flush goja.Callable
}

// New creates an adapter for the given loop and runtime.
func New(loop *eventloop.Loop, runtime *goja.Runtime) (*Adapter, error) {
	if loop == nil {
		return nil, errors.New("gojaops: loop cannot be nil")
	}
	if runtime == nil {
		return nil, errors.New("gojaops: runtime cannot be nil")
	}
	flush, ok := goja.AssertFunction(runtime.ToValue(func(goja.FunctionCall) goja.Value {
		return goja.Undefined()
	}))
	if !ok {
		return nil, errors.New("gojaops: failed to create flush function")
	}
	return &Adapter{loop: loop, runtime: runtime, flush: flush}, nil
}

// Bind creates an adapter and installs the ops global.
func Bind(loop *eventloop.Loop, runtime *goja.Runtime) (*Adapter, error) {
	a, err := New(loop, runtime)
	if err != nil {
		return nil, err
	}
	if err := a.Bind(); err != nil {
		return nil, err
	}
	return a, nil
}

// Loop returns the event loop
func (a *Adapter) Loop() *eventloop.Loop {
	return a.loop
}

// Runtime returns the Goja runtime
func (a *Adapter) Runtime() *goja.Runtime {
	return a.runtime
}

// Bind installs the ops global. This must be called before running script
// that uses it.
func (a *Adapter) Bind() error {
	obj := a.runtime.NewObject()
	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"call":      a.call,
		"callAsync": a.callAsync,
		"cancel":    a.cancel,
		"close":     a.close,
		"resources": a.resources,
		"names":     a.names,
		"metrics":   a.metrics,
	} {
		if err := obj.Set(name, fn); err != nil {
			return fmt.Errorf("gojaops: failed to bind %s: %w", name, err)
		}
	}
	return a.runtime.Set(GlobalName, obj)
}

func (a *Adapter) opName(call goja.FunctionCall) string {
	name, ok := call.Argument(0).Export().(string)
	if !ok || name == "" {
		panic(a.runtime.NewTypeError("op name must be a non-empty string"))
	}
	return name
}

func (a *Adapter) call(call goja.FunctionCall) goja.Value {
	name := a.opName(call)
	v, err := a.loop.CallSync(name, a.exportArgs(call.Arguments[1:])...)
	if err != nil {
		panic(a.jsError(err))
	}
	return a.toValue(v)
}

func (a *Adapter) callAsync(call goja.FunctionCall) goja.Value {
	name := a.opName(call)
	promise, h := a.newPromise()
	id, _ := a.loop.CallAsync(name, h, a.exportArgs(call.Arguments[1:])...)
	obj := a.runtime.ToValue(promise).ToObject(a.runtime)
	if err := obj.DefineDataProperty("id", a.runtime.ToValue(uint32(id)), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
		panic(a.runtime.NewGoError(err))
	}
	return obj
}

func (a *Adapter) cancel(call goja.FunctionCall) goja.Value {
	arg := call.Argument(0)
	if obj, ok := arg.(*goja.Object); ok {
		arg = obj.Get("id")
	}
	if arg == nil || goja.IsUndefined(arg) || goja.IsNull(arg) {
		panic(a.runtime.NewTypeError("cancel requires a promise from ops.callAsync, or its id"))
	}
	id := arg.ToInteger()
	if id < 0 || id > int64(^uint32(0)) {
		return a.runtime.ToValue(false)
	}
	return a.runtime.ToValue(a.loop.Cancel(completion.ID(id)))
}

func (a *Adapter) close(call goja.FunctionCall) goja.Value {
	if _, err := a.loop.CallSync(eventloop.OpClose, call.Argument(0).Export()); err != nil {
		panic(a.jsError(err))
	}
	return goja.Undefined()
}

func (a *Adapter) resources(goja.FunctionCall) goja.Value {
	v, err := a.loop.CallSync(eventloop.OpResources)
	if err != nil {
		panic(a.jsError(err))
	}
	return a.toValue(v)
}

func (a *Adapter) names(goja.FunctionCall) goja.Value {
	return a.runtime.ToValue(a.loop.Registry().Names())
}

func (a *Adapter) metrics(goja.FunctionCall) goja.Value {
	v, err := a.loop.CallSync(eventloop.OpMetrics)
	if err != nil {
		panic(a.jsError(err))
	}
	return a.toValue(v)
}

// exportArgs converts script values to the types ops.Args understands.
func (a *Adapter) exportArgs(values []goja.Value) []any {
	args := make([]any, len(values))
	for i, v := range values {
		switch x := v.Export().(type) {
		case goja.ArrayBuffer:
			args[i] = x.Bytes()
		default:
			args[i] = x
		}
	}
	return args
}

// toValue converts op results to script values.
func (a *Adapter) toValue(v any) goja.Value {
	switch x := v.(type) {
	case nil:
		return goja.Undefined()
	case goja.Value:
		return x
	case []byte:
		return a.runtime.ToValue(a.runtime.NewArrayBuffer(x))
	case resource.ID:
		return a.runtime.ToValue(uint32(x))
	case []resource.Entry:
		arr := make([]any, len(x))
		for i, e := range x {
			arr[i] = map[string]any{"id": uint32(e.ID), "name": e.Name}
		}
		return a.runtime.ToValue(arr)
	case ops.Metrics:
		return a.runtime.ToValue(map[string]any{
			"dispatched":      x.Dispatched,
			"dispatchedSync":  x.DispatchedSync,
			"dispatchedAsync": x.DispatchedAsync,
			"completed":       x.Completed,
			"completedSync":   x.CompletedSync,
			"completedAsync":  x.CompletedAsync,
			"failed":          x.Failed,
			"pending":         x.Pending(),
			"bytesSent":       x.BytesSent,
			"bytesReceived":   x.BytesReceived,
		})
	default:
		return a.runtime.ToValue(v)
	}
}

// jsError builds the script-facing Error for err.
func (a *Adapter) jsError(err error) *goja.Object {
	kind := operr.KindOf(err)
	obj, e := a.runtime.New(a.runtime.Get("Error"), a.runtime.ToValue(err.Error()))
	if e != nil {
		return a.runtime.NewGoError(err)
	}
	_ = obj.Set("name", operr.ClassName(kind))
	_ = obj.Set("kind", kind.String())
	return obj
}

// promiseHandle settles a Goja promise with the outcome of an async call.
// The settle funcs are pinned to the goroutine that created the promise,
// the only one allowed to touch the runtime.
type promiseHandle struct {
	adapter *Adapter
	settle  taskset.Local[settlers]
}

type settlers struct {
	resolve func(goja.Value)
	reject  func(goja.Value)
}

func (a *Adapter) newPromise() (*goja.Promise, *promiseHandle) {
	promise, resolve, reject := a.runtime.NewPromise()
	return promise, &promiseHandle{
		adapter: a,
		settle: taskset.NewLocal(goid.Get(), settlers{
			resolve: func(v goja.Value) { resolve(v) },
			reject:  func(v goja.Value) { reject(v) },
		}),
	}
}

func (h *promiseHandle) Resolve(v any) {
	settle := h.settle.Get()
	settle.resolve(h.adapter.toValue(v))
	h.adapter.runJobs()
}

func (h *promiseHandle) Reject(err error) {
	settle := h.settle.Get()
	settle.reject(h.adapter.jsError(err))
	h.adapter.runJobs()
}

// runJobs runs promise reactions, which Goja defers until the outermost
// call into the runtime returns. It is a no-op inside such a call.
func (a *Adapter) runJobs() {
	_, _ = a.flush(goja.Undefined())
}
