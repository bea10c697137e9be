package resource

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_ReadWrite(t *testing.T) {
	ctx := context.Background()
	b := NewBuffer("", []byte("hello"))
	assert.Equal(t, "buffer", b.Name())

	lo, hi, bounded := b.SizeHint()
	assert.Equal(t, uint64(5), lo)
	assert.Equal(t, uint64(5), hi)
	assert.False(t, bounded)

	p, err := b.Read(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "hel", string(p))

	n, err := b.Write(ctx, []byte(" world"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	p, err = b.Read(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "lo world", string(p))

	p, err = b.Read(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, p)

	require.NoError(t, b.Shutdown(ctx))
	_, err = b.Read(ctx, 10)
	assert.ErrorIs(t, err, io.EOF)
	_, err = b.Write(ctx, []byte("x"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestBuffer_ClosedRejects(t *testing.T) {
	b := NewBuffer("mem", nil)
	b.Close()
	_, err := b.Read(context.Background(), 1)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestCell_BorrowWaitsForRelease(t *testing.T) {
	c := NewCell(0)
	v, release, err := c.Borrow(context.Background())
	require.NoError(t, err)

	_, _, ok := c.TryBorrow()
	assert.False(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err = c.Borrow(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	*v = 7
	release()
	assert.Panics(t, release)

	v, release, ok = c.TryBorrow()
	require.True(t, ok)
	assert.Equal(t, 7, *v)
	release()
}

func TestCell_Serializes(t *testing.T) {
	c := NewCell(0)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, release, err := c.Borrow(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			n := *v
			time.Sleep(time.Microsecond)
			*v = n + 1
			release()
		}()
	}
	wg.Wait()
	v, release, ok := c.TryBorrow()
	require.True(t, ok)
	defer release()
	assert.Equal(t, 50, *v)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestRc_ClosesOnLastRelease(t *testing.T) {
	var closed int
	rc := NewRc[io.Closer](closerFunc(func() error {
		closed++
		return io.ErrUnexpectedEOF
	}))
	_, ok := rc.Acquire()
	require.True(t, ok)
	assert.Equal(t, 2, rc.Refs())

	require.NoError(t, rc.Release())
	assert.Zero(t, closed)
	assert.ErrorIs(t, rc.Release(), io.ErrUnexpectedEOF)
	assert.Equal(t, 1, closed)

	_, ok = rc.Acquire()
	assert.False(t, ok)
	assert.NoError(t, rc.Release())
	assert.Equal(t, 1, closed)
}
