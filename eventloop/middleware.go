package eventloop

import (
	"context"
)

// Middleware runs on the loop goroutine at the end of each turn iteration,
// after ready tasks are drained. It reports whether it did work, in which
// case the turn iterates again. An error is logged and does not fail the
// turn.
type Middleware func(ctx context.Context, l *Loop) (bool, error)

// AddMiddleware appends mw, taking effect from the next iteration. It is
// safe to call from any goroutine.
func (l *Loop) AddMiddleware(mw Middleware) {
	if mw == nil {
		panic(`eventloop: nil middleware`)
	}
	l.mwMu.Lock()
	l.middleware = append(l.middleware, mw)
	l.mwMu.Unlock()
}

func (l *Loop) runMiddleware(ctx context.Context) (worked bool) {
	l.mwMu.Lock()
	middleware := l.middleware
	l.mwMu.Unlock()

	for i, mw := range middleware {
		var (
			did bool
			err error
		)
		l.safeExecute(`middleware`, func() { did, err = mw(ctx, l) })
		if err != nil {
			l.logger.Err().
				Int(`middleware`, i).
				Err(err).
				Log(`middleware failed`)
		}
		if did {
			worked = true
		}
	}
	return worked
}
