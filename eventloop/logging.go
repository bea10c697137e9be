package eventloop

import (
	"github.com/joeycumines/go-opcore/completion"
	"github.com/joeycumines/go-opcore/operr"
)

// logFailure logs a failed call at debug, and at warning as long as the
// per op name rate limit allows. Cancellation is not a failure worth
// warning about.
func (l *Loop) logFailure(name string, id completion.ID, err error) {
	l.logger.Debug().
		Str(`op`, name).
		Uint64(`completion`, uint64(id)).
		Str(`kind`, operr.KindOf(err).String()).
		Err(err).
		Log(`op rejected`)

	if l.failures == nil || operr.IsCancelled(err) {
		return
	}
	if _, ok := l.failures.Allow(name); !ok {
		return
	}
	l.logger.Warning().
		Str(`op`, name).
		Str(`class`, operr.Class(err)).
		Err(err).
		Log(`op failing`)
}
