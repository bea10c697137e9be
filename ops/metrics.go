package ops

import (
	"fmt"
	"sort"
	"sync"

	"github.com/docker/go-units"
)

// Metrics are counters for one op, or the sum over all ops.
type Metrics struct {
	Dispatched      uint64
	DispatchedSync  uint64
	DispatchedAsync uint64
	Completed       uint64
	CompletedSync   uint64
	CompletedAsync  uint64
	Failed          uint64
	BytesSent       uint64
	BytesReceived   uint64
}

// Pending is the number of dispatched calls not yet completed.
func (m Metrics) Pending() uint64 {
	return m.Dispatched - m.Completed
}

func (m Metrics) add(o Metrics) Metrics {
	m.Dispatched += o.Dispatched
	m.DispatchedSync += o.DispatchedSync
	m.DispatchedAsync += o.DispatchedAsync
	m.Completed += o.Completed
	m.CompletedSync += o.CompletedSync
	m.CompletedAsync += o.CompletedAsync
	m.Failed += o.Failed
	m.BytesSent += o.BytesSent
	m.BytesReceived += o.BytesReceived
	return m
}

func (m Metrics) String() string {
	return fmt.Sprintf("dispatched=%d (sync=%d async=%d) completed=%d failed=%d sent=%s received=%s",
		m.Dispatched, m.DispatchedSync, m.DispatchedAsync, m.Completed, m.Failed,
		units.BytesSize(float64(m.BytesSent)), units.BytesSize(float64(m.BytesReceived)))
}

// Tracker accumulates [Metrics] per op name. It is safe for concurrent use.
type Tracker struct {
	ops map[string]*Metrics
	mu  sync.Mutex
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{ops: make(map[string]*Metrics)}
}

func (t *Tracker) get(name string) *Metrics {
	if t.ops == nil {
		t.ops = make(map[string]*Metrics)
	}
	m := t.ops[name]
	if m == nil {
		m = new(Metrics)
		t.ops[name] = m
	}
	return m
}

// Dispatch records a call.
func (t *Tracker) Dispatch(name string, async bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.get(name)
	m.Dispatched++
	if async {
		m.DispatchedAsync++
	} else {
		m.DispatchedSync++
	}
}

// Complete records the end of a call.
func (t *Tracker) Complete(name string, async bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.get(name)
	m.Completed++
	if async {
		m.CompletedAsync++
	} else {
		m.CompletedSync++
	}
	if err != nil {
		m.Failed++
	}
}

// Sent records n bytes passed into an op (e.g. written).
func (t *Tracker) Sent(name string, n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.get(name).BytesSent += uint64(n)
}

// Received records n bytes returned from an op (e.g. read).
func (t *Tracker) Received(name string, n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.get(name).BytesReceived += uint64(n)
}

// Snapshot returns a copy of the per-op metrics.
func (t *Tracker) Snapshot() map[string]Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Metrics, len(t.ops))
	for name, m := range t.ops {
		out[name] = *m
	}
	return out
}

// Aggregate returns the sum over all ops.
func (t *Tracker) Aggregate() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total Metrics
	for _, m := range t.ops {
		total = total.add(*m)
	}
	return total
}

// Names returns the names of every op with recorded metrics, sorted.
func (t *Tracker) Names() []string {
	t.mu.Lock()
	names := make([]string, 0, len(t.ops))
	for name := range t.ops {
		names = append(names, name)
	}
	t.mu.Unlock()
	sort.Strings(names)
	return names
}
