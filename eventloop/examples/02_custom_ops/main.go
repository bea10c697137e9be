// Example: Custom Ops
//
// This example demonstrates extending the loop with ops:
// - A sync op, completing inline
// - An async op whose body honors cancellation
// - Cancelling an in-flight call by completion id
//
// Run with: go run ./eventloop/examples/02_custom_ops/
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joeycumines/go-opcore/eventloop"
	"github.com/joeycumines/go-opcore/operr"
	"github.com/joeycumines/go-opcore/ops"
	"github.com/joeycumines/go-opcore/opstate"
)

type counter struct{ n int }

func main() {
	reg := ops.NewRegistry()
	if err := eventloop.RegisterCoreOps(reg); err != nil {
		panic(err)
	}
	reg.MustRegister(
		ops.Decl{
			Name: "op_upper",
			Sync: func(s *opstate.State, args ops.Args) (any, error) {
				v, err := args.String(0)
				if err != nil {
					return nil, err
				}
				opstate.Borrow[counter](s).n++
				return strings.ToUpper(v), nil
			},
		},
		ops.Decl{
			Name: "op_slow_echo",
			Async: func(s *opstate.State, args ops.Args) (ops.Future, error) {
				v, err := args.String(0)
				if err != nil {
					return nil, err
				}
				opstate.Borrow[counter](s).n++
				return func(ctx context.Context) (any, error) {
					select {
					case <-time.After(50 * time.Millisecond):
						return v, nil
					case <-ctx.Done():
						return nil, context.Cause(ctx)
					}
				}, nil
			},
		},
	)

	loop, err := eventloop.New(eventloop.WithOpRegistry(reg))
	if err != nil {
		panic(err)
	}
	defer loop.Close()

	opstate.Put(loop.OpState(), counter{})

	v, err := loop.CallSync("op_upper", "sync ops complete inline")
	fmt.Println(v, err)

	_, err = loop.CallSync("op_upper", 42)
	fmt.Printf("bad argument: %v (class %s)\n", err, operr.Class(err))

	report := func(label string) eventloop.CompletionHandle {
		return eventloop.CompletionFuncs{
			OnResolve: func(v any) { fmt.Println(label, "resolved:", v) },
			OnReject: func(err error) {
				fmt.Printf("%s rejected: %v (class %s)\n", label, err, operr.Class(err))
			},
		}
	}

	if _, err := loop.CallAsync("op_slow_echo", report("first"), "async ops resolve later"); err != nil {
		panic(err)
	}
	second, err := loop.CallAsync("op_slow_echo", report("second"), "never seen")
	if err != nil {
		panic(err)
	}
	fmt.Println("cancelled second:", loop.Cancel(second))

	if err := loop.RunEventLoop(context.Background(), false); err != nil {
		panic(err)
	}

	fmt.Println("handler calls:", opstate.Borrow[counter](loop.OpState()).n)
}
