// Package examples contains runnable example programs demonstrating
// the eventloop package functionality.
//
// # Examples
//
// The examples directory contains the following subdirectories:
//
//   - 01_basic_usage: Resources, core ops and driving the loop
//   - 02_custom_ops: Registering sync and async ops, and cancellation
//   - 03_timers: Reactor timers and op_sleep
//   - 04_shutdown: Closing the loop with work in flight
//
// # Running Examples
//
// Each example can be run from the repository root:
//
//	go run ./eventloop/examples/01_basic_usage/
//	go run ./eventloop/examples/02_custom_ops/
//	go run ./eventloop/examples/03_timers/
//	go run ./eventloop/examples/04_shutdown/
package examples
