package cancel

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/joeycumines/go-opcore/operr"
	"github.com/joeycumines/go-opcore/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_CancelRunsHooksInOrder(t *testing.T) {
	h := New()
	var calls []int
	h.OnCancel(func(error) { calls = append(calls, 1) })
	stop := h.OnCancel(func(error) { calls = append(calls, 2) })
	h.OnCancel(func(error) { calls = append(calls, 3) })
	assert.True(t, stop())
	assert.False(t, stop())

	assert.False(t, h.Cancelled())
	assert.NoError(t, h.Err())

	h.Cancel(nil)
	h.Cancel(io.EOF)
	assert.Equal(t, []int{1, 3}, calls)
	assert.True(t, h.Cancelled())
	assert.True(t, errors.Is(h.Err(), ErrCancelled))
	assert.False(t, errors.Is(h.Err(), io.EOF), "first cancel wins")

	select {
	case <-h.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestHandle_OnCancelAfterFire(t *testing.T) {
	h := New()
	h.Cancel(io.ErrUnexpectedEOF)
	var got error
	stop := h.OnCancel(func(err error) { got = err })
	assert.False(t, stop())
	require.Error(t, got)
	assert.Equal(t, operr.KindCancelled, operr.KindOf(got))
	assert.ErrorIs(t, got, io.ErrUnexpectedEOF)
}

func TestHandle_Context(t *testing.T) {
	h := New()
	ctx, release := h.Context(context.Background())
	defer release()
	assert.NoError(t, ctx.Err())
	h.Cancel(nil)
	<-ctx.Done()
	assert.ErrorIs(t, context.Cause(ctx), ErrCancelled)
}

func TestHandle_ContextReleaseUnregisters(t *testing.T) {
	h := New()
	ctx, release := h.Context(context.Background())
	release()
	assert.ErrorIs(t, context.Cause(ctx), context.Canceled)
	h.mu.Lock()
	assert.Empty(t, h.hooks)
	h.mu.Unlock()
}

func TestHandle_ClosingFromTableCancels(t *testing.T) {
	tbl := resource.NewTable()
	h := New()
	id := tbl.Add(h)
	got, err := resource.Get[*Handle](tbl, id)
	require.NoError(t, err)
	assert.Same(t, h, got)
	assert.Equal(t, "cancellation", got.Name())

	require.NoError(t, tbl.Close(id))
	assert.True(t, h.Cancelled())
}

func TestHandle_ConcurrentCancel(t *testing.T) {
	h := New()
	var (
		mu    sync.Mutex
		fired int
		wg    sync.WaitGroup
	)
	for range 8 {
		h.OnCancel(func(error) {
			mu.Lock()
			fired++
			mu.Unlock()
		})
	}
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Cancel(nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, fired)
}
