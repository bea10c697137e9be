//go:build linux || darwin

package reactor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPollReactor_RegisterFD(t *testing.T) {
	r, err := NewPollReactor(WithMaxWait(time.Second))
	require.NoError(t, err)
	defer r.Close()

	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	var got IOEvents
	require.NoError(t, r.RegisterFD(fds[0], EventRead, func(ev IOEvents) {
		got |= ev
		var buf [16]byte
		_, _ = unix.Read(fds[0], buf[:])
	}))
	assert.ErrorIs(t, r.RegisterFD(fds[0], EventRead, nil), ErrFDAlreadyRegistered)

	_, err = unix.Write(fds[1], []byte("x"))
	require.NoError(t, err)
	require.NoError(t, r.Poll(context.Background(), true))
	assert.NotZero(t, got&EventRead)

	require.NoError(t, r.ModifyFD(fds[0], EventRead|EventWrite))
	require.NoError(t, r.UnregisterFD(fds[0]))
	assert.ErrorIs(t, r.UnregisterFD(fds[0]), ErrFDNotRegistered)
	assert.ErrorIs(t, r.ModifyFD(fds[0], EventRead), ErrFDNotRegistered)
	assert.ErrorIs(t, r.RegisterFD(-1, EventRead, nil), ErrFDOutOfRange)
}

func TestPollReactor_WakeDeduplicated(t *testing.T) {
	r, err := NewPollReactor()
	require.NoError(t, err)
	defer r.Close()

	for range 100 {
		r.Wake()
	}
	assert.True(t, r.wakePending.Load())
	require.NoError(t, r.Poll(context.Background(), false))
	assert.False(t, r.wakePending.Load())
}

func TestPollReactor_UnregisterWakeFD(t *testing.T) {
	r, err := NewPollReactor()
	require.NoError(t, err)
	defer r.Close()
	assert.ErrorIs(t, r.UnregisterFD(r.wakeFD), ErrFDNotRegistered)
}

// The wake fd is only written while it is known to be open: once Close
// returns, Wake leaves the (possibly reused) fd number alone.
func TestPollReactor_WakeConcurrentWithClose(t *testing.T) {
	for range 100 {
		r, err := NewPollReactor()
		require.NoError(t, err)
		wakeFD := r.wakeWriteFD

		var wg sync.WaitGroup
		start := make(chan struct{})
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for range 100 {
					r.wakePending.Store(false)
					r.Wake()
				}
			}()
		}
		close(start)
		require.NoError(t, r.Close())

		// the closed fd number may be handed out again; nothing may write to it
		var fds [2]int
		require.NoError(t, unix.Pipe(fds[:]))
		wg.Wait()
		if fds[0] == wakeFD || fds[1] == wakeFD {
			require.NoError(t, unix.SetNonblock(fds[0], true))
			var buf [8]byte
			_, err := unix.Read(fds[0], buf[:])
			assert.ErrorIs(t, err, unix.EAGAIN)
		}
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	}
}
