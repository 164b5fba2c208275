//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based multiplexer and eventfd(2)-based notifier.

package reactor

import (
	"encoding/binary"
	"errors"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-events/api"
)

// epollMultiplexer is a level-triggered epoll instance.
type epollMultiplexer struct {
	epfd int
	raw  []unix.EpollEvent
}

// NewMultiplexer constructs the epoll multiplexer. maxEvents bounds how many
// ready descriptors one Wait can report.
func NewMultiplexer(maxEvents int) (Multiplexer, error) {
	if maxEvents <= 0 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "reactor: maxEvents must be positive").
			WithContext("maxEvents", maxEvents)
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, api.SystemError("epoll_create1", err)
	}
	return &epollMultiplexer{
		epfd: epfd,
		raw:  make([]unix.EpollEvent, maxEvents),
	}, nil
}

// Add adds file descriptor to epoll.
func (m *epollMultiplexer) Add(fd int) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		if errors.Is(err, unix.EEXIST) {
			return api.NewError(api.ErrCodeAlreadyExists, "epoll_ctl add").WithContext("fd", fd).Wrap(err)
		}
		return api.SystemError("epoll_ctl add", err).WithContext("fd", fd)
	}
	return nil
}

// Remove removes file descriptor from epoll.
func (m *epollMultiplexer) Remove(fd int) error {
	err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == nil || errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EBADF) {
		return nil
	}
	return api.SystemError("epoll_ctl del", err).WithContext("fd", fd)
}

// Wait waits for epoll events and fills the result into events slice.
func (m *epollMultiplexer) Wait(events []Event, timeout time.Duration) (int, error) {
	limit := len(events)
	if limit > len(m.raw) {
		limit = len(m.raw)
	}
	if limit == 0 {
		return 0, api.NewError(api.ErrCodeInvalidArgument, "reactor: empty event buffer")
	}
	n, err := unix.EpollWait(m.epfd, m.raw[:limit], timeoutMillis(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, api.SystemError("epoll_wait", err)
	}
	for i := 0; i < n; i++ {
		events[i] = Event{
			FD:    int(m.raw[i].Fd),
			Flags: fromEpoll(m.raw[i].Events),
		}
	}
	return n, nil
}

// Close closes the epoll instance.
func (m *epollMultiplexer) Close() error {
	if m.epfd < 0 {
		return nil
	}
	err := unix.Close(m.epfd)
	m.epfd = -1
	return err
}

func fromEpoll(raw uint32) Flags {
	var f Flags
	if raw&unix.EPOLLIN != 0 {
		f |= EventRead
	}
	if raw&unix.EPOLLOUT != 0 {
		f |= EventWrite
	}
	if raw&unix.EPOLLERR != 0 {
		f |= EventError
	}
	if raw&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		f |= EventHangup
	}
	return f
}

// eventNotifier wraps a non-blocking eventfd counter.
type eventNotifier struct {
	fd int
}

// NewNotifier creates the eventfd used to wake a blocked Wait.
func NewNotifier() (Notifier, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, api.SystemError("eventfd", err)
	}
	return &eventNotifier{fd: fd}, nil
}

func (n *eventNotifier) FD() int { return n.fd }

func (n *eventNotifier) Notify() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(n.fd, buf[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
		return api.SystemError("eventfd write", err)
	}
	return nil
}

func (n *eventNotifier) Drain() error {
	var buf [8]byte
	if _, err := unix.Read(n.fd, buf[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
		return api.SystemError("eventfd read", err)
	}
	return nil
}

func (n *eventNotifier) Close() error {
	if n.fd < 0 {
		return nil
	}
	err := unix.Close(n.fd)
	n.fd = -1
	return err
}
