// Example: Timer Patterns
//
// This example demonstrates timers driven by the loop's reactor:
// - AfterFunc callbacks on the loop goroutine
// - Stopping and rearming a timer
// - op_sleep, an async op completing on a timer
//
// Run with: go run ./eventloop/examples/03_timers/
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joeycumines/go-opcore/eventloop"
	"github.com/joeycumines/go-opcore/reactor"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	loop, err := eventloop.New()
	if err != nil {
		panic(err)
	}
	defer loop.Close()

	start := time.Now()
	elapsed := func() time.Duration { return time.Since(start).Round(10 * time.Millisecond) }

	if _, err := loop.AfterFunc(100*time.Millisecond, func() {
		fmt.Println("timer fired after", elapsed())
	}); err != nil {
		panic(err)
	}

	stopped, _ := loop.AfterFunc(50*time.Millisecond, func() {
		fmt.Println("never printed")
	})
	fmt.Println("stopped before firing:", stopped.Stop())

	// a rearming timer, firing three times
	ticks := 0
	var ticker *reactor.Timer
	ticker, _ = loop.AfterFunc(30*time.Millisecond, func() {
		ticks++
		fmt.Println("tick", ticks, "at", elapsed())
		if ticks < 3 {
			ticker.Reset(30 * time.Millisecond)
		}
	})

	_, err = loop.CallAsync(eventloop.OpSleep, eventloop.CompletionFuncs{
		OnResolve: func(any) { fmt.Println("op_sleep resolved after", elapsed()) },
	}, 150)
	if err != nil {
		panic(err)
	}

	if err := loop.RunEventLoop(ctx, false); err != nil {
		panic(err)
	}
	fmt.Println("idle after", elapsed())
}
