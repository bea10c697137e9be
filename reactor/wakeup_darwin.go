//go:build darwin

package reactor

import (
	"golang.org/x/sys/unix"
)

// createWakeFD creates a non-blocking, close-on-exec self-pipe, returning
// the read end then the write end.
func createWakeFD() (int, int, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return 0, 0, err
	}
	cleanup := func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	if err := unix.SetNonblock(fds[0], true); err != nil {
		cleanup()
		return 0, 0, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		cleanup()
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

func signalWakeFD(fd int) error {
	_, err := unix.Write(fd, []byte{1})
	return err
}

func drainWakeFD(fd int) {
	var buf [64]byte
	for {
		n, err := unix.Read(fd, buf[:])
		if err != nil || n < len(buf) {
			return
		}
	}
}
