// Package eventpoll wraps golang.org/x/sys/unix's poll(2) binding behind
// a narrow interface, so the event pump in flush.go can be driven by a
// fake in tests without touching real file descriptors.
package eventpoll

import (
	"time"

	"golang.org/x/sys/unix"
)

// Events are the poll(2) readiness bits the event pump cares about.
const (
	POLLIN  = unix.POLLIN
	POLLHUP = unix.POLLHUP
	POLLERR = unix.POLLERR
)

// FD is one descriptor entry in a poll set. A descriptor of -1
// represents a tombstoned slot: the kernel ignores it and never reports
// events for it.
type FD struct {
	Fd      int32
	Events  int16
	Revents int16
}

// Poller is the surface flush.go needs from poll(2).
type Poller interface {
	// Poll blocks until an fd in fds is ready, timeout elapses, or an
	// error occurs. It returns the number of ready descriptors, or a
	// negative number and an error on failure. Revents fields of fds are
	// updated in place.
	Poll(fds []FD, timeout time.Duration) (int, error)
}

// Real polls real file descriptors via golang.org/x/sys/unix.
type Real struct{}

// Poll implements Poller using the real poll(2) syscall.
func (Real) Poll(fds []FD, timeout time.Duration) (int, error) {
	raw := make([]unix.PollFd, len(fds))
	for i, fd := range fds {
		raw[i] = unix.PollFd{Fd: fd.Fd, Events: fd.Events}
	}
	ms := int(timeout / time.Millisecond)
	if timeout > 0 && ms == 0 {
		ms = 1
	}
	n, err := unix.Poll(raw, ms)
	for i := range fds {
		fds[i].Revents = raw[i].Revents
	}
	return n, err
}
