package eventloop

import (
	"time"

	"github.com/joeycumines/go-opcore/reactor"
)

// AfterFunc arms a reactor timer that runs fn on the loop goroutine after
// d. The timer keeps the loop [Running] while armed; stop or reset it on
// the loop goroutine. AfterFunc itself must be called on the loop
// goroutine, or while the loop is not being turned.
func (l *Loop) AfterFunc(d time.Duration, fn func()) (*reactor.Timer, error) {
	if !l.state.CanAcceptWork() {
		return nil, ErrLoopTerminated
	}
	t := l.reactor.NewTimer(func() { l.safeExecute(`timer`, fn) })
	t.Reset(d)
	return t, nil
}
