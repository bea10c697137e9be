package resource

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/joeycumines/go-opcore/operr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResource struct {
	Named
	closes *int
}

func (r *countingResource) Close() { *r.closes++ }

type otherResource struct{ Named }

func newCounting(name string) (*countingResource, *int) {
	n := new(int)
	return &countingResource{Named: Named(name), closes: n}, n
}

func TestTable_AddGet(t *testing.T) {
	tbl := NewTable()
	r, _ := newCounting("file")
	id := tbl.Add(r)
	assert.Equal(t, ID(0), id)

	got, err := Get[*countingResource](tbl, id)
	require.NoError(t, err)
	assert.Same(t, r, got)

	res, err := tbl.GetAny(id)
	require.NoError(t, err)
	assert.Equal(t, "file", res.Name())
	assert.True(t, tbl.Has(id))
	assert.Equal(t, 1, tbl.Len())
}

func TestTable_GetWrongType(t *testing.T) {
	tbl := NewTable()
	id := tbl.Add(&otherResource{Named: "other"})
	_, err := Get[*countingResource](tbl, id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadResourceType))
	assert.Equal(t, operr.KindNotFound, operr.KindOf(err))
	assert.True(t, tbl.Has(id), "a failed typed lookup must not disturb the entry")
}

func TestTable_GetMissing(t *testing.T) {
	var tbl Table
	_, err := tbl.GetAny(42)
	assert.True(t, IsNotFound(err))
	_, err = Get[*otherResource](&tbl, 0)
	assert.True(t, errors.Is(err, ErrBadResource))
}

func TestTable_DoubleClose(t *testing.T) {
	tbl := NewTable()
	r, closes := newCounting("sock")
	id := tbl.Add(r)

	require.NoError(t, tbl.Close(id))
	err := tbl.Close(id)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 1, *closes)
	assert.Zero(t, tbl.Len())
}

func TestTable_TakeSkipsHook(t *testing.T) {
	tbl := NewTable()
	r, closes := newCounting("pipe")
	id := tbl.Add(r)

	_, err := Take[*otherResource](tbl, id)
	require.Error(t, err)
	assert.True(t, tbl.Has(id))

	got, err := Take[*countingResource](tbl, id)
	require.NoError(t, err)
	assert.Same(t, r, got)
	assert.False(t, tbl.Has(id))
	assert.Zero(t, *closes)

	// the taken reference keeps working after removal
	got.Close()
	assert.Equal(t, 1, *closes)
}

func TestTable_ClosedIDsStayClosed(t *testing.T) {
	tbl := NewTable()
	a := tbl.Add(Named("file-a"))
	require.NoError(t, tbl.Close(a))
	b := tbl.Add(Named("socket-b"))
	assert.NotEqual(t, a, b)
	_, err := tbl.GetAny(a)
	assert.ErrorIs(t, err, ErrBadResource)
	assert.Equal(t, operr.KindNotFound, operr.KindOf(err))
	assert.Equal(t, []Entry{{ID: b, Name: "socket-b"}}, tbl.Names())
}

func TestTable_CursorWrapSkipsOpenIDs(t *testing.T) {
	tbl := NewTable()
	zero := tbl.Add(Named("zero"))
	require.Equal(t, ID(0), zero)
	tbl.next = ^ID(0)
	last := tbl.Add(Named("last"))
	assert.Equal(t, ^ID(0), last)
	assert.Equal(t, ID(1), tbl.Add(Named("wrapped")))
	assert.Equal(t, []Entry{{ID: 0, Name: "zero"}, {ID: 1, Name: "wrapped"}, {ID: ^ID(0), Name: "last"}}, tbl.Names())
}

// No id is returned by Add while a prior Add of it is still open.
func TestTable_UniqueLiveIDs(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	tbl := NewTable()
	live := make(map[ID]struct{})
	var order []ID
	for range 10_000 {
		if len(order) > 0 && rng.IntN(3) == 0 {
			i := rng.IntN(len(order))
			id := order[i]
			order[i] = order[len(order)-1]
			order = order[:len(order)-1]
			require.NoError(t, tbl.Close(id))
			delete(live, id)
			continue
		}
		id := tbl.Add(Named("r"))
		_, dup := live[id]
		require.False(t, dup, "id %d handed out while live", id)
		live[id] = struct{}{}
		order = append(order, id)
	}
	assert.Equal(t, len(live), tbl.Len())
	for _, e := range tbl.Names() {
		assert.Contains(t, live, e.ID)
	}
}

func TestBase_Unsupported(t *testing.T) {
	r := Named("timer")
	_, err := r.Read(context.Background(), 1)
	assert.Equal(t, operr.KindUnsupported, operr.KindOf(err))
	assert.EqualError(t, err, `resource "timer" does not support read`)
	_, err = r.Write(context.Background(), nil)
	assert.Equal(t, operr.KindUnsupported, operr.KindOf(err))
	assert.Equal(t, operr.KindUnsupported, operr.KindOf(r.Shutdown(context.Background())))

	var b Base
	assert.Equal(t, "unknown", b.Name())
	_, _, bounded := b.SizeHint()
	assert.False(t, bounded)
}

type socketResource struct{ Base }

func (socketResource) Name() string { return "socket" }

func TestAttribute(t *testing.T) {
	var r socketResource
	_, err := r.Read(context.Background(), 1)
	assert.Equal(t, operr.KindUnsupported, operr.KindOf(err))
	assert.ErrorIs(t, err, operr.ErrUnsupported)

	err = Attribute(r, err)
	assert.EqualError(t, err, `resource "socket" does not support read`)
	assert.Equal(t, operr.KindUnsupported, operr.KindOf(err))
	assert.EqualError(t, Attribute(r, r.Shutdown(context.Background())), `resource "socket" does not support shutdown`)

	assert.NoError(t, Attribute(r, nil))
	assert.Same(t, ErrBadResource, Attribute(r, ErrBadResource))
}
