package eventloop

import (
	"bytes"
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/go-opcore/ops"
	"github.com/joeycumines/go-opcore/opstate"
	"github.com/joeycumines/go-opcore/reactor"
	"github.com/joeycumines/go-opcore/resource"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

// recorder is a CompletionHandle counting its outcomes. Only used from the
// loop goroutine.
type recorder struct {
	value    any
	err      error
	resolved int
	rejected int
}

func (r *recorder) Resolve(v any) {
	r.resolved++
	r.value = v
}

func (r *recorder) Reject(err error) {
	r.rejected++
	r.err = err
}

func (r *recorder) settled() bool { return r.resolved+r.rejected != 0 }

// slowResource answers each read with its tag after a random delay.
type slowResource struct {
	resource.Base
	closed *atomic.Int32
	tag    byte
}

func (r *slowResource) Name() string { return "slow" }

func (r *slowResource) Read(ctx context.Context, _ int) ([]byte, error) {
	t := time.NewTimer(time.Duration(rand.IntN(2000)) * time.Microsecond)
	defer t.Stop()
	select {
	case <-t.C:
		return []byte{r.tag}, nil
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

func (r *slowResource) Close() {
	if r.closed != nil {
		r.closed.Add(1)
	}
}

// syncBuffer is a goroutine safe log sink.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger(w *syncBuffer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()
}

// testOps are registered alongside the core ops by newTestLoop.
var testOps = []ops.Decl{
	{Name: `op_add`, Sync: func(_ *opstate.State, args ops.Args) (any, error) {
		a, err := args.Int(0)
		if err != nil {
			return nil, err
		}
		b, err := args.Int(1)
		if err != nil {
			return nil, err
		}
		return a + b, nil
	}},
	{Name: `op_echo`, Async: func(_ *opstate.State, args ops.Args) (ops.Future, error) {
		v := any(nil)
		if args.Len() != 0 {
			v = args[0]
		}
		return func(context.Context) (any, error) { return v, nil }, nil
	}},
	{Name: `op_hang`, Async: func(*opstate.State, ops.Args) (ops.Future, error) {
		return func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, context.Cause(ctx)
		}, nil
	}},
	{Name: `op_panic`, Async: func(*opstate.State, ops.Args) (ops.Future, error) {
		return func(context.Context) (any, error) { panic(`boom`) }, nil
	}},
	{Name: `op_boom`, Async: func(*opstate.State, ops.Args) (ops.Future, error) {
		panic(`inline`)
	}},
}

func newTestLoop(t *testing.T, opts ...LoopOption) *Loop {
	t.Helper()
	reg := ops.NewRegistry()
	require.NoError(t, RegisterCoreOps(reg))
	require.NoError(t, reg.Register(testOps...))
	r, err := reactor.NewChanReactor(reactor.WithMaxWait(5 * time.Millisecond))
	require.NoError(t, err)
	loop, err := New(append([]LoopOption{WithOpRegistry(reg), WithReactor(r)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = loop.Close()
		_ = r.Close()
	})
	return loop
}

// turnUntil turns the loop until cond holds.
func turnUntil(t *testing.T, loop *Loop, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for !cond() {
		_, err := loop.Turn(ctx)
		require.NoError(t, err)
	}
}
