package ops

import (
	"context"
	"errors"
	"testing"

	"github.com/joeycumines/go-opcore/opstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syncOp(name string) Decl {
	return Decl{Name: name, Sync: func(*opstate.State, Args) (any, error) { return nil, nil }}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(syncOp("op_b"), Decl{
		Name: "op_a",
		Async: func(*opstate.State, Args) (Future, error) {
			return func(context.Context) (any, error) { return 1, nil }, nil
		},
	}))
	assert.Equal(t, []string{"op_a", "op_b"}, r.Names())

	d, ok := r.Lookup("op_a")
	require.True(t, ok)
	assert.True(t, d.IsAsync())
	_, ok = r.Lookup("op_missing")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	var r Registry
	require.NoError(t, r.Register(syncOp("op_x")))
	assert.True(t, errors.Is(r.Register(syncOp("op_y"), syncOp("op_x")), ErrDuplicateOp))
	_, ok := r.Lookup("op_y")
	assert.False(t, ok, "registration is all-or-nothing")
	assert.True(t, errors.Is(r.Register(syncOp("op_z"), syncOp("op_z")), ErrDuplicateOp))
	assert.Panics(t, func() { r.MustRegister(syncOp("op_x")) })
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register(Decl{Name: "op_none"}), ErrInvalidDecl)
	assert.ErrorIs(t, r.Register(syncOp("")), ErrInvalidDecl)
	both := syncOp("op_both")
	both.Async = func(*opstate.State, Args) (Future, error) { return nil, nil }
	assert.ErrorIs(t, r.Register(both), ErrInvalidDecl)
}

func TestCurrentCall(t *testing.T) {
	s := opstate.New()
	assert.Panics(t, func() { CurrentCall(s) })

	call := &Call{Name: "op_read", ID: 3, Async: true}
	opstate.Put(s, call)
	got := CurrentCall(s)
	assert.Same(t, call, got)
	assert.Nil(t, got.CancelHandle())
}
