package reactor

import (
	"container/heap"
	"time"
)

// Timer is a rearmable one-shot timer, owned by a [Reactor]. Its callback
// runs on the polling goroutine. A Timer is not safe for concurrent use.
type Timer struct {
	q     *timerQueue
	fn    func()
	when  Instant
	seq   uint64
	index int
}

// Reset arms the timer to fire d from now, rearming it if already armed.
func (t *Timer) Reset(d time.Duration) {
	t.when = now().Add(d)
	t.q.seq++
	t.seq = t.q.seq
	if t.index >= 0 {
		heap.Fix(&t.q.heap, t.index)
		return
	}
	heap.Push(&t.q.heap, t)
}

// Stop disarms the timer, reporting whether it was armed.
func (t *Timer) Stop() bool {
	if t.index < 0 {
		return false
	}
	heap.Remove(&t.q.heap, t.index)
	return true
}

// Armed reports whether the timer is waiting to fire.
func (t *Timer) Armed() bool {
	return t.index >= 0
}

// When returns the deadline the timer was last armed with.
func (t *Timer) When() Instant {
	return t.when
}

type timerQueue struct {
	heap timerHeap
	seq  uint64
}

func (q *timerQueue) newTimer(fn func()) *Timer {
	return &Timer{q: q, fn: fn, index: -1}
}

func (q *timerQueue) next() (Instant, bool) {
	if len(q.heap) == 0 {
		return Instant{}, false
	}
	return q.heap[0].when, true
}

func (q *timerQueue) len() int {
	return len(q.heap)
}

// fireDue disarms and runs, in deadline order, every timer due at or
// before at. Timers armed by a callback during the pass wait for the next
// one, even if already due.
func (q *timerQueue) fireDue(at Instant) int {
	limit := q.seq
	var fired int
	for len(q.heap) > 0 {
		t := q.heap[0]
		if at.Before(t.when) || t.seq > limit {
			break
		}
		heap.Pop(&q.heap)
		fired++
		if t.fn != nil {
			t.fn()
		}
	}
	return fired
}

// timerHeap is a min-heap of timers, ordered by deadline.
type timerHeap []*Timer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
