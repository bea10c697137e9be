package goid

import (
	"testing"
)

func TestGet(t *testing.T) {
	main := Get()
	if main == 0 {
		t.Fatal("expected a non-zero goroutine id")
	}
	if again := Get(); again != main {
		t.Fatalf("unstable id: %d != %d", again, main)
	}
	ch := make(chan uint64)
	go func() { ch <- Get() }()
	if other := <-ch; other == main || other == 0 {
		t.Fatalf("unexpected id for another goroutine: %d", other)
	}
}
