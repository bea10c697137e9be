package eventloop

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_iteratesWhileWorking(t *testing.T) {
	remaining := 3
	calls := 0
	loop := newTestLoop(t, WithMiddleware(func(context.Context, *Loop) (bool, error) {
		calls++
		if remaining > 0 {
			remaining--
			return true, nil
		}
		return false, nil
	}))

	status, err := loop.Turn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Idle, status)
	assert.Equal(t, 4, calls)
}

func TestMiddleware_errorsAreLogged(t *testing.T) {
	logs := new(syncBuffer)
	loop := newTestLoop(t, WithLogger(newTestLogger(logs)))
	loop.AddMiddleware(func(context.Context, *Loop) (bool, error) {
		return false, errors.New(`middleware broke`)
	})
	loop.AddMiddleware(func(context.Context, *Loop) (bool, error) {
		panic(`middleware panicked`)
	})

	_, err := loop.Turn(context.Background())
	require.NoError(t, err)
	out := logs.String()
	assert.Contains(t, out, `middleware broke`)
	assert.Contains(t, out, `loop callback panicked`)
	assert.Contains(t, out, loop.ID().String())
}

func TestMiddleware_spawnsWork(t *testing.T) {
	var rec recorder
	spawned := false
	loop := newTestLoop(t, WithMiddleware(func(_ context.Context, l *Loop) (bool, error) {
		if spawned {
			return false, nil
		}
		spawned = true
		_, err := l.CallAsync(`op_echo`, &rec, `from middleware`)
		return true, err
	}))
	require.NoError(t, loop.RunEventLoop(context.Background(), false))
	assert.Equal(t, `from middleware`, rec.value)
}

func TestWithMiddleware_nil(t *testing.T) {
	_, err := New(WithMiddleware(nil))
	assert.Error(t, err)
}

func TestInbox(t *testing.T) {
	loop := newTestLoop(t, WithInbox(2))
	inbox := loop.Inbox()

	require.NoError(t, inbox.Post(`a`))
	require.NoError(t, inbox.Post(`b`))
	assert.ErrorIs(t, inbox.Post(`c`), ErrInboxFull)
	assert.Equal(t, 2, inbox.Len())

	// no handler, so nothing is delivered
	status, err := loop.Turn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Idle, status)
	assert.Equal(t, 2, inbox.Len())

	var got []string
	inbox.OnMessage(func(msg any) { got = append(got, msg.(string)) })
	_, err = loop.Turn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{`a`, `b`}, got)
	assert.Zero(t, inbox.Len())

	inbox.Close()
	assert.True(t, inbox.Closed())
	assert.ErrorIs(t, inbox.Post(`d`), ErrInboxClosed)
}

func TestRunEventLoop_waitForInbound(t *testing.T) {
	loop := newTestLoop(t)
	var got []int
	loop.Inbox().OnMessage(func(msg any) {
		got = append(got, msg.(int))
		// each message also starts an async op
		_, _ = loop.CallAsync(OpSleep, nil, 1)
	})

	go func() {
		for i := range 5 {
			_ = loop.Inbox().Post(i)
			time.Sleep(time.Millisecond)
		}
		loop.Inbox().Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, loop.RunEventLoop(ctx, true))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.Zero(t, loop.Metrics().Aggregate().Pending())
}

func TestLogging_failureRateLimit(t *testing.T) {
	logs := new(syncBuffer)
	loop := newTestLoop(t,
		WithLogger(newTestLogger(logs)),
		WithFailureLogRate(map[time.Duration]int{time.Hour: 2}),
	)
	for range 5 {
		_, err := loop.CallSync(`op_add`)
		require.Error(t, err)
	}
	out := logs.String()
	assert.Equal(t, 5, strings.Count(out, `op rejected`))
	assert.Equal(t, 2, strings.Count(out, `op failing`))
	assert.Contains(t, out, `"class":"TypeError"`)
}
