package transport

import (
	"errors"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"firestige.xyz/ifcli/internal/api"
)

// MaxPollTimeout caps how long Poll may block, so table changes are seen
// promptly even when nothing is arriving.
const MaxPollTimeout = 100 * time.Millisecond

// Poll waits until at least one of conns is readable or timeout passes. The
// returned slice marks the ready entries; hang-ups and errors count as ready
// so the following read reports them. With no conns it just sleeps.
func Poll(conns []syscall.RawConn, timeout time.Duration) ([]bool, error) {
	if timeout <= 0 || timeout > MaxPollTimeout {
		timeout = MaxPollTimeout
	}
	ready := make([]bool, len(conns))
	if len(conns) == 0 {
		time.Sleep(timeout)
		return ready, nil
	}

	fds := make([]unix.PollFd, len(conns))
	for i, rc := range conns {
		fd, err := descriptor(rc)
		if err != nil {
			return nil, err
		}
		fds[i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
	}

	_, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return ready, nil
		}
		return nil, transportErr("poll", err)
	}
	for i := range fds {
		ready[i] = fds[i].Revents != 0
	}
	return ready, nil
}

// ReadFrame performs exactly one read on rc. It never waits: a descriptor
// with nothing to read yields unix.EAGAIN.
func ReadFrame(rc syscall.RawConn, buf []byte) (int, error) {
	var (
		n    int
		rerr error
	)
	err := rc.Read(func(fd uintptr) bool {
		n, rerr = unix.Read(int(fd), buf)
		return true
	})
	if err != nil {
		return 0, err
	}
	if rerr != nil {
		return 0, rerr
	}
	return n, nil
}

// Spurious reports whether err from ReadFrame only means there was nothing
// to read after all.
func Spurious(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR)
}

func descriptor(rc syscall.RawConn) (int, error) {
	fd := -1
	if err := rc.Control(func(f uintptr) { fd = int(f) }); err != nil {
		return -1, transportErr("descriptor", err)
	}
	return fd, nil
}

func transportErr(op string, err error) error {
	return api.TransportError(op, err)
}
