//go:build linux || darwin

package reactor

// New returns a [PollReactor].
func New(opts ...Option) (Reactor, error) {
	return NewPollReactor(opts...)
}
