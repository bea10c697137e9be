package completion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker(t *testing.T, opts ...Option) *Tracker[string] {
	t.Helper()
	tr, err := New[string](opts...)
	require.NoError(t, err)
	return tr
}

func TestNew_InvalidCapacity(t *testing.T) {
	for _, n := range []int{0, -4, 3, 100} {
		_, err := New[int](WithCapacity(n))
		var capErr *CapacityError
		require.ErrorAs(t, err, &capErr, "capacity %d", n)
		assert.Equal(t, n, capErr.Capacity)
	}
}

func TestTracker_HasTakeLifecycle(t *testing.T) {
	tr := newTracker(t)
	id := tr.Allocate("a")
	assert.Equal(t, ID(0), id)
	assert.True(t, tr.Has(id))
	assert.Equal(t, 1, tr.Len())

	h, ok := tr.Take(id)
	require.True(t, ok)
	assert.Equal(t, "a", h)
	assert.False(t, tr.Has(id))
	_, ok = tr.Take(id)
	assert.False(t, ok, "an id is taken at most once")
	assert.Zero(t, tr.Len())
}

// Allocating N+5 ids without taking any moves ids 0..4 into the fallback.
func TestTracker_EvictsToFallback(t *testing.T) {
	const n = 16
	tr := newTracker(t, WithCapacity(n))
	for i := range n + 5 {
		assert.Equal(t, ID(i), tr.Allocate(string(rune('a'+i%26))))
	}
	assert.Equal(t, 5, tr.FallbackLen())
	assert.Equal(t, n+5, tr.Len())
	for i := range n + 5 {
		assert.True(t, tr.Has(ID(i)), "id %d", i)
	}

	h, ok := tr.Take(2)
	require.True(t, ok)
	assert.Equal(t, "c", h)
	assert.Equal(t, 4, tr.FallbackLen())

	h, ok = tr.Take(n + 2)
	require.True(t, ok)
	assert.Equal(t, string(rune('a'+(n+2)%26)), h)
}

func TestTracker_ResolvedSlotsAreNotEvicted(t *testing.T) {
	tr := newTracker(t, WithCapacity(4))
	for range 100 {
		id := tr.Allocate("x")
		_, ok := tr.Take(id)
		require.True(t, ok)
	}
	assert.Zero(t, tr.FallbackLen())
	assert.Zero(t, tr.Len())
}

func TestTracker_Wraps(t *testing.T) {
	tr := newTracker(t, WithCapacity(8), WithBase(math.MaxUint32-2))
	var ids []ID
	for range 6 {
		ids = append(ids, tr.Allocate("w"))
	}
	assert.Equal(t, []ID{math.MaxUint32 - 2, math.MaxUint32 - 1, math.MaxUint32, 0, 1, 2}, ids)
	for _, id := range ids {
		assert.True(t, tr.Has(id))
	}
	assert.False(t, tr.Has(3))
	assert.False(t, tr.Has(math.MaxUint32-3))
}

func TestTracker_DrainOldestFirst(t *testing.T) {
	tr := newTracker(t, WithCapacity(4))
	for i := range 7 {
		tr.Allocate(string(rune('0' + i)))
	}
	_, _ = tr.Take(5)

	var got []ID
	var handles string
	tr.Drain(func(id ID, h string) {
		got = append(got, id)
		handles += h
	})
	assert.Equal(t, []ID{0, 1, 2, 3, 4, 6}, got)
	assert.Equal(t, "012346", handles)
	assert.Zero(t, tr.Len())
	assert.Zero(t, tr.FallbackLen())
	assert.Equal(t, ID(7), tr.Next())
}

func TestTracker_DrainOldestFirstAcrossWrap(t *testing.T) {
	tr := newTracker(t, WithCapacity(4), WithBase(^ID(0)-3))
	var want []ID
	for i := range 10 {
		want = append(want, tr.Allocate(string(rune('a'+i))))
	}
	require.Equal(t, ID(6), tr.Next())
	require.Equal(t, 6, tr.FallbackLen())

	h, ok := tr.Peek(^ID(0))
	require.True(t, ok)
	assert.Equal(t, "d", h)

	var got []ID
	var handles string
	tr.Drain(func(id ID, h string) {
		got = append(got, id)
		handles += h
	})
	assert.Equal(t, want, got)
	assert.Equal(t, "abcdefghij", handles)
	assert.Zero(t, tr.Len())
}

func TestTracker_Peek(t *testing.T) {
	tr := newTracker(t)
	id := tr.Allocate("p")
	h, ok := tr.Peek(id)
	assert.True(t, ok)
	assert.Equal(t, "p", h)
	assert.True(t, tr.Has(id))
}
