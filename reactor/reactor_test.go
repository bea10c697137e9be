package reactor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func implementations(t *testing.T) map[string]func(...Option) (Reactor, error) {
	t.Helper()
	return map[string]func(...Option) (Reactor, error){
		"default": New,
		"chan": func(opts ...Option) (Reactor, error) {
			return NewChanReactor(opts...)
		},
	}
}

func forEach(t *testing.T, fn func(t *testing.T, r Reactor)) {
	for name, ctor := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			r, err := ctor(WithMaxWait(time.Second))
			require.NoError(t, err)
			defer func() { assert.NoError(t, r.Close()) }()
			fn(t, r)
		})
	}
}

func TestReactor_TimersFireInDeadlineOrder(t *testing.T) {
	forEach(t, func(t *testing.T, r Reactor) {
		var order []int
		for i, d := range []time.Duration{30, 10, 20} {
			tm := r.NewTimer(func() { order = append(order, i) })
			tm.Reset(d * time.Millisecond)
		}
		assert.Equal(t, 3, r.ArmedTimers())
		deadline := time.Now().Add(2 * time.Second)
		for r.ArmedTimers() > 0 && time.Now().Before(deadline) {
			require.NoError(t, r.Poll(context.Background(), true))
		}
		assert.Equal(t, []int{1, 2, 0}, order)
	})
}

func TestReactor_TimerResetAndStop(t *testing.T) {
	forEach(t, func(t *testing.T, r Reactor) {
		var fired int
		tm := r.NewTimer(func() { fired++ })
		assert.False(t, tm.Armed())
		assert.False(t, tm.Stop())

		tm.Reset(time.Hour)
		assert.True(t, tm.Armed())
		tm.Reset(0)
		assert.Equal(t, 1, r.ArmedTimers(), "reset rearms in place")

		require.NoError(t, r.Poll(context.Background(), true))
		assert.Equal(t, 1, fired)
		assert.False(t, tm.Armed())

		tm.Reset(time.Hour)
		assert.True(t, tm.Stop())
		assert.Zero(t, r.ArmedTimers())
	})
}

func TestReactor_RearmFromCallbackWaitsForNextPoll(t *testing.T) {
	forEach(t, func(t *testing.T, r Reactor) {
		var fired int
		var tm *Timer
		tm = r.NewTimer(func() {
			fired++
			tm.Reset(0)
		})
		tm.Reset(0)
		require.NoError(t, r.Poll(context.Background(), false))
		assert.Equal(t, 1, fired)
		assert.True(t, tm.Armed())
		require.NoError(t, r.Poll(context.Background(), false))
		assert.Equal(t, 2, fired)
		tm.Stop()
	})
}

func TestReactor_WakeInterruptsPoll(t *testing.T) {
	forEach(t, func(t *testing.T, r Reactor) {
		r.Spawn(func() {
			time.Sleep(10 * time.Millisecond)
			r.Wake()
		})
		start := time.Now()
		require.NoError(t, r.Poll(context.Background(), true))
		assert.Less(t, time.Since(start), 900*time.Millisecond)
	})
}

func TestReactor_ContextCancelInterruptsPoll(t *testing.T) {
	forEach(t, func(t *testing.T, r Reactor) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		start := time.Now()
		require.NoError(t, r.Poll(ctx, true))
		assert.Less(t, time.Since(start), 900*time.Millisecond)
		assert.ErrorIs(t, r.Poll(ctx, true), context.DeadlineExceeded)
	})
}

func TestReactor_PollAfterClose(t *testing.T) {
	for name, ctor := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			r, err := ctor()
			require.NoError(t, err)
			require.NoError(t, r.Close())
			require.NoError(t, r.Close())
			assert.True(t, errors.Is(r.Poll(context.Background(), false), ErrReactorClosed))
		})
	}
}

func TestWithSpawner(t *testing.T) {
	var spawned int
	r, err := NewChanReactor(WithSpawner(func(fn func()) {
		spawned++
		fn()
	}))
	require.NoError(t, err)
	ran := false
	r.Spawn(func() { ran = true })
	assert.True(t, ran)
	assert.Equal(t, 1, spawned)
}

func TestTimeoutMillis(t *testing.T) {
	assert.Equal(t, 0, timeoutMillis(0))
	assert.Equal(t, 1, timeoutMillis(time.Microsecond))
	assert.Equal(t, 2, timeoutMillis(1500*time.Microsecond))
	assert.Equal(t, 10, timeoutMillis(10*time.Millisecond))
}

func TestInstant(t *testing.T) {
	var zero Instant
	assert.True(t, zero.IsZero())
	a := now()
	b := a.Add(time.Second)
	assert.True(t, a.Before(b))
	assert.Equal(t, time.Second, b.Sub(a))
}
