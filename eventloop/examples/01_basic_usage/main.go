// Example: Basic Event Loop Usage
//
// This example demonstrates the fundamental usage of the event loop:
// - Creating a loop
// - Adding a resource and calling core ops against it
// - Running the loop until it is idle
//
// Run with: go run ./eventloop/examples/01_basic_usage/
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joeycumines/go-opcore/eventloop"
	"github.com/joeycumines/go-opcore/resource"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
		stumpy.L.WithLevel(logiface.LevelInformational),
	).Logger()

	loop, err := eventloop.New(eventloop.WithLogger(logger))
	if err != nil {
		panic(err)
	}
	defer loop.Close()

	rid := loop.Resources().Add(resource.NewBuffer("greeting", nil))
	fmt.Println("added resource", rid)

	// Writes and reads are async: the handler validates, the body runs off
	// the loop goroutine, and the outcome comes back during a turn.
	_, err = loop.CallAsync(eventloop.OpWrite, eventloop.CompletionFuncs{
		OnResolve: func(v any) {
			fmt.Println("wrote", v, "bytes")
			_, _ = loop.CallAsync(eventloop.OpRead, eventloop.CompletionFuncs{
				OnResolve: func(v any) { fmt.Printf("read %q\n", v) },
				OnReject:  func(err error) { fmt.Println("read failed:", err) },
			}, rid)
		},
		OnReject: func(err error) { fmt.Println("write failed:", err) },
	}, rid, "hello, loop")
	if err != nil {
		panic(err)
	}

	if err := loop.RunEventLoop(ctx, false); err != nil {
		panic(err)
	}

	resources, _ := loop.CallSync(eventloop.OpResources)
	fmt.Println("open resources:", resources)

	metrics, _ := loop.CallSync(eventloop.OpMetrics)
	fmt.Println("metrics:", metrics)
}
