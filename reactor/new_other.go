//go:build !linux && !darwin

package reactor

// New returns a [ChanReactor]; this platform has no fd poller.
func New(opts ...Option) (Reactor, error) {
	return NewChanReactor(opts...)
}
