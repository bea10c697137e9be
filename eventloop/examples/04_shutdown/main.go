// Example: Shutdown Handling
//
// This example demonstrates closing the loop:
// - Closing from another goroutine while the loop is running
// - Outstanding completions rejected with ErrLoopTerminated
// - Resources closed on shutdown
// - Context cancellation of RunEventLoop
//
// Run with: go run ./eventloop/examples/04_shutdown/
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/go-opcore/eventloop"
	"github.com/joeycumines/go-opcore/resource"
)

type noisy struct {
	resource.Base
	name string
}

func (n *noisy) Name() string { return n.name }

func (n *noisy) Close() { fmt.Println("closed resource", n.name) }

func main() {
	closeWhileRunning()
	contextCancellation()
}

func closeWhileRunning() {
	fmt.Println("\n=== Close While Running ===")

	loop, err := eventloop.New()
	if err != nil {
		panic(err)
	}
	loop.Resources().Add(&noisy{name: "db"})
	loop.Resources().Add(&noisy{name: "socket"})

	for i := range 3 {
		_, err := loop.CallAsync(eventloop.OpSleep, eventloop.CompletionFuncs{
			OnResolve: func(any) { fmt.Println("sleep", i, "finished") },
			OnReject: func(err error) {
				fmt.Println("sleep", i, "rejected:", err, errors.Is(err, eventloop.ErrLoopTerminated))
			},
		}, 10_000)
		if err != nil {
			panic(err)
		}
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		fmt.Println("closing from another goroutine")
		if err := loop.Close(); err != nil {
			fmt.Println("close:", err)
		}
	}()

	if err := loop.RunEventLoop(context.Background(), false); err != nil {
		panic(err)
	}
	fmt.Println("state:", loop.State())
	fmt.Println("second close:", loop.Close())
}

func contextCancellation() {
	fmt.Println("\n=== Context Cancellation ===")

	loop, err := eventloop.New()
	if err != nil {
		panic(err)
	}
	defer loop.Close()

	_, _ = loop.CallAsync(eventloop.OpSleep, nil, 10_000)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = loop.RunEventLoop(ctx, false)
	fmt.Println("run returned:", err)
	fmt.Println("state:", loop.State(), "pending ops:", loop.Metrics().Aggregate().Pending())
}
