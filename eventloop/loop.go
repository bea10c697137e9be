package eventloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-opcore/completion"
	"github.com/joeycumines/go-opcore/internal/goid"
	"github.com/joeycumines/go-opcore/internal/queue"
	"github.com/joeycumines/go-opcore/ops"
	"github.com/joeycumines/go-opcore/opstate"
	"github.com/joeycumines/go-opcore/reactor"
	"github.com/joeycumines/go-opcore/resource"
	"github.com/joeycumines/go-opcore/taskset"
	"github.com/joeycumines/logiface"
)

// turnBudget bounds the iterations of one turn.
const turnBudget = 1024

// Loop is one execution context: op state, resources, completions and
// in-flight tasks, plus the driver that moves them forward.
type Loop struct { // betteralign:ignore
	// Prevent copying
	_ [0]func()

	logger   *logiface.Logger[logiface.Event]
	failures *catrate.Limiter

	state *FastState

	reactor     reactor.Reactor
	ownsReactor bool

	opState     *opstate.State
	resources   *resource.Table
	completions *completion.Tracker[*pendingCall]
	tasks       *taskset.Set[any]
	registry    *ops.Registry
	metrics     *ops.Tracker
	inbox       *Inbox

	// ctx is the parent of every task context, cancelled on shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	mwMu       sync.Mutex
	middleware []Middleware

	submitMu  sync.Mutex
	submitted queue.Chunked[func()]

	// wake is the task set waker, bound once.
	wake func()

	loopGoroutineID atomic.Uint64
	inTurn          atomic.Bool
	waitInbound     bool

	id uuid.UUID
}

// pendingCall is the completion tracker entry of one async call.
type pendingCall struct {
	handle CompletionHandle
	abort  *taskset.AbortHandle
	name   string
}

// New creates a loop. Unless [WithOpRegistry] is given, the core ops are
// registered (see [RegisterCoreOps]).
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	completions, err := completion.New[*pendingCall](cfg.completionOpts...)
	if err != nil {
		return nil, err
	}

	registry := cfg.registry
	if registry == nil {
		registry = ops.NewRegistry()
	}
	if cfg.coreOps {
		if err := RegisterCoreOps(registry); err != nil {
			return nil, err
		}
	}

	r := cfg.reactor
	ownsReactor := false
	if r == nil {
		r, err = reactor.New()
		if err != nil {
			return nil, err
		}
		ownsReactor = true
	}

	ctx, cancel := context.WithCancel(context.Background())

	l := &Loop{
		id:          uuid.New(),
		state:       new(FastState),
		reactor:     r,
		ownsReactor: ownsReactor,
		opState:     opstate.New(),
		resources:   resource.NewTable(),
		completions: completions,
		tasks:       taskset.New[any](r.Spawn),
		registry:    registry,
		metrics:     ops.NewTracker(),
		ctx:         ctx,
		cancel:      cancel,
		middleware:  append([]Middleware(nil), cfg.middleware...),
	}
	l.wake = r.Wake
	l.inbox = newInbox(cfg.inboxCapacity, r.Wake)
	l.middleware = append(l.middleware, l.inbox.drain)

	// arm the waker, so tasks settling before the first turn wake it
	l.tasks.PollNext(l.wake)

	if len(cfg.failureLogRates) != 0 {
		l.failures = catrate.NewLimiter(cfg.failureLogRates)
	}

	if cfg.logger != nil {
		l.logger = cfg.logger.Clone().Str(`loop`, l.id.String()).Logger()
	}

	opstate.Put(l.opState, l.resources)
	opstate.Put(l.opState, l.metrics)
	opstate.Put(l.opState, l)
	opstate.Put[Scheduler](l.opState, l)

	l.logger.Debug().Log(`loop created`)

	return l, nil
}

// ID returns the execution context id.
func (l *Loop) ID() uuid.UUID { return l.id }

// State returns the lifecycle state.
func (l *Loop) State() LoopState { return l.state.Load() }

// OpState returns the op state. It must only be used on the loop
// goroutine; see [Loop.WithState].
func (l *Loop) OpState() *opstate.State { return l.opState }

// Resources returns the resource table.
func (l *Loop) Resources() *resource.Table { return l.resources }

// Metrics returns the per-op diagnostics.
func (l *Loop) Metrics() *ops.Tracker { return l.metrics }

// Registry returns the op registry.
func (l *Loop) Registry() *ops.Registry { return l.registry }

// Reactor returns the timer and I/O substrate.
func (l *Loop) Reactor() reactor.Reactor { return l.reactor }

// Inbox returns the cross-context message channel.
func (l *Loop) Inbox() *Inbox { return l.inbox }

// Turn performs one turn, reporting whether the loop is [Idle] or
// [Running] afterwards.
//
// A turn waits on the reactor only if no work is ready. The wait is
// bounded by the next timer deadline, and by ctx; if nothing is pending at
// all, it does not wait. If the loop is closed during the turn, shutdown
// completes before Turn returns.
func (l *Loop) Turn(ctx context.Context) (Status, error) {
	if l.state.IsTerminal() {
		return Idle, ErrLoopTerminated
	}
	if !l.inTurn.CompareAndSwap(false, true) {
		if l.state.Load() >= StateTerminating {
			return Idle, ErrLoopTerminated
		}
		if l.isLoopThread() {
			return Running, ErrReentrantRun
		}
		return Running, ErrLoopAlreadyRunning
	}

	status, err := l.turnHeld(ctx)
	if l.releaseTurn() {
		return Idle, err
	}
	return status, err
}

// turnHeld runs one turn while holding inTurn, releasing it only if the
// turn panics.
func (l *Loop) turnHeld(ctx context.Context) (status Status, err error) {
	ok := false
	defer func() {
		if !ok {
			l.inTurn.Store(false)
		}
	}()

	if l.state.TryTransition(StateAwake, StateRunning) {
		l.logger.Debug().Log(`loop started`)
	}
	l.loopGoroutineID.Store(goid.Get())

	err = l.turn(ctx)

	if l.state.Load() == StateTerminating {
		l.shutdown()
		status = Idle
	} else {
		status = l.status()
	}
	ok = true
	return status, err
}

// releaseTurn clears inTurn. A Close that raced the end of the turn will
// have failed to acquire inTurn, and left shutdown to the turn; so if the
// loop is then still terminating, shutdown is claimed and run here. It
// reports whether it ran shutdown.
func (l *Loop) releaseTurn() bool {
	l.inTurn.Store(false)
	if l.state.Load() != StateTerminating || !l.inTurn.CompareAndSwap(false, true) {
		return false
	}
	defer l.inTurn.Store(false)
	l.shutdown()
	return true
}

func (l *Loop) turn(ctx context.Context) error {
	for i := 0; i < turnBudget; i++ {
		if l.state.Load() != StateRunning {
			return nil
		}

		block := i == 0 && !l.hasReadyWork() && l.hasPendingWork()
		if err := l.reactor.Poll(ctx, block); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return err
			}
			l.logger.Crit().Err(err).Log(`reactor poll failed, terminating loop`)
			l.state.TryTransition(StateRunning, StateTerminating)
			return err
		}

		l.drainSubmitted()
		l.drainTasks()

		if !l.runMiddleware(ctx) {
			return nil
		}
	}
	return nil
}

// RunEventLoop turns the loop until it is [Idle]. With waitForInbound, it
// additionally keeps turning, waiting for messages, until the inbox is
// closed and drained. It returns nil if the loop is closed while running.
func (l *Loop) RunEventLoop(ctx context.Context, waitForInbound bool) error {
	if l.isLoopThread() && l.inTurn.Load() {
		return ErrReentrantRun
	}
	l.waitInbound = waitForInbound
	defer func() { l.waitInbound = false }()
	for turned := false; ; turned = true {
		status, err := l.Turn(ctx)
		if err != nil {
			if turned && errors.Is(err, ErrLoopTerminated) {
				return nil
			}
			return err
		}
		if status == Idle && (!waitForInbound || l.inbox.done() || l.state.IsTerminal()) {
			return nil
		}
	}
}

func (l *Loop) hasReadyWork() bool {
	return l.submittedLen() > 0 || l.tasks.Ready() > 0 || l.inbox.ready()
}

// hasPendingWork reports whether waiting could make progress.
func (l *Loop) hasPendingWork() bool {
	return l.tasks.Pending() > 0 || l.reactor.ArmedTimers() > 0 ||
		(l.waitInbound && !l.inbox.done())
}

func (l *Loop) status() Status {
	if l.tasks.Len() > 0 || l.completions.Len() > 0 ||
		l.reactor.ArmedTimers() > 0 || l.submittedLen() > 0 {
		return Running
	}
	return Idle
}

// Submit queues fn to run on the loop goroutine during a turn. It is safe
// to call from any goroutine.
func (l *Loop) Submit(fn func()) error {
	if fn == nil {
		return nil
	}
	if l.state.Load() >= StateTerminating {
		return ErrLoopTerminated
	}
	l.submitMu.Lock()
	l.submitted.Push(fn)
	l.submitMu.Unlock()
	l.reactor.Wake()
	return nil
}

// Scheduler queues callbacks onto the loop goroutine. The loop stores
// itself in the op state under this type, so async op bodies can hop
// back onto the loop.
type Scheduler interface {
	Submit(fn func()) error
}

// WithState runs fn with the op state, on the loop goroutine, and returns
// its error. Called on the loop goroutine it runs fn inline; otherwise it
// waits for the next turn, or ctx.
func (l *Loop) WithState(ctx context.Context, fn func(s *opstate.State) error) error {
	if l.isLoopThread() {
		return fn(l.opState)
	}
	result := make(chan error, 1)
	if err := l.Submit(func() { result <- fn(l.opState) }); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

func (l *Loop) submittedLen() int {
	l.submitMu.Lock()
	defer l.submitMu.Unlock()
	return l.submitted.Len()
}

// drainSubmitted runs the callbacks queued before the call.
func (l *Loop) drainSubmitted() {
	l.submitMu.Lock()
	n := l.submitted.Len()
	batch := make([]func(), 0, n)
	for range n {
		fn, _ := l.submitted.Pop()
		batch = append(batch, fn)
	}
	l.submitMu.Unlock()
	for _, fn := range batch {
		l.safeExecute(`submit`, fn)
	}
}

// drainTasks resolves every settled task, in settle order, and leaves
// the reactor waker armed.
func (l *Loop) drainTasks() {
	for {
		r, ok := l.tasks.PollNext(l.wake)
		if !ok {
			return
		}
		id, _ := r.Tag.(completion.ID)
		call, ok := l.completions.Take(id)
		if !ok {
			continue
		}
		l.metrics.Complete(call.name, true, r.Err)
		if r.Err != nil {
			var panicErr *taskset.PanicError
			if errors.As(r.Err, &panicErr) {
				l.logger.Err().
					Str(`op`, call.name).
					Uint64(`completion`, uint64(id)).
					Err(r.Err).
					Str(`stack`, string(panicErr.Stack)).
					Log(`async op panicked`)
			} else {
				l.logFailure(call.name, id, r.Err)
			}
			l.safeExecute(call.name, func() { call.handle.Reject(r.Err) })
			continue
		}
		l.safeExecute(call.name, func() { call.handle.Resolve(r.Value) })
	}
}

// Close shuts the loop down: in-flight tasks are aborted, outstanding
// completions rejected with [ErrLoopTerminated], every resource closed,
// and an owned reactor closed. Queued callbacks run first.
//
// Called during a turn, shutdown completes when the turn returns.
func (l *Loop) Close() error {
	for {
		current := l.state.Load()
		if current == StateTerminated || current == StateTerminating {
			return ErrLoopTerminated
		}
		if l.state.TryTransition(current, StateTerminating) {
			break
		}
	}
	if !l.inTurn.CompareAndSwap(false, true) {
		l.reactor.Wake()
		return nil
	}
	defer l.inTurn.Store(false)
	l.shutdown()
	return nil
}

// shutdown performs the shutdown sequence. The caller holds inTurn.
func (l *Loop) shutdown() {
	if l.state.IsTerminal() {
		return
	}

	l.drainSubmitted()

	l.cancel()
	l.tasks.AbortAll(ErrLoopTerminated)
	for {
		if _, ok := l.tasks.TryNext(); !ok {
			break
		}
	}
	l.completions.Drain(func(id completion.ID, call *pendingCall) {
		l.metrics.Complete(call.name, true, ErrLoopTerminated)
		l.safeExecute(call.name, func() { call.handle.Reject(ErrLoopTerminated) })
	})

	l.state.Store(StateTerminated)

	l.inbox.Close()
	l.resources.CloseAll()

	if l.ownsReactor {
		if err := l.reactor.Close(); err != nil {
			l.logger.Err().Err(err).Log(`failed to close reactor`)
		}
	}

	// callbacks that raced the terminal state
	l.drainSubmitted()

	l.logger.Debug().Log(`loop terminated`)
}

// safeExecute runs fn, recovering and logging a panic.
func (l *Loop) safeExecute(source string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Err().
				Str(`source`, source).
				Any(`panic`, r).
				Log(`loop callback panicked`)
		}
	}()
	fn()
}

// isLoopThread checks if we're on the goroutine that last turned the loop.
func (l *Loop) isLoopThread() bool {
	loopID := l.loopGoroutineID.Load()
	if loopID == 0 {
		return false
	}
	return goid.Get() == loopID
}
