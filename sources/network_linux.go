// File: sources/network_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sources

import (
	"errors"
	"net"
	"net/netip"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-events/api"
	"github.com/momentics/hioload-events/core/event"
	"github.com/momentics/hioload-events/core/queue"
	"github.com/momentics/hioload-events/internal/log"
)

func peerOf(sa unix.Sockaddr) (string, uint16) {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrFrom4(a.Addr).String(), uint16(a.Port)
	case *unix.SockaddrInet6:
		return netip.AddrFrom16(a.Addr).Unmap().String(), uint16(a.Port)
	case *unix.SockaddrUnix:
		return a.Name, 0
	}
	return "", 0
}

// listenerFD returns the descriptor behind l without duplicating it.
func listenerFD(l *net.TCPListener) (int, error) {
	rc, err := l.SyscallConn()
	if err != nil {
		return -1, api.SystemError("listener fd", err)
	}
	fd := -1
	if err := rc.Control(func(s uintptr) { fd = int(s) }); err != nil {
		return -1, api.SystemError("listener fd", err)
	}
	return fd, nil
}

func acceptOne(fd int) *event.Value {
	nfd, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		// EAGAIN: another acceptor won the race. ECONNABORTED and friends
		// leave nothing to report either.
		return event.NewEmpty()
	}
	addr, port := peerOf(sa)
	return event.New(Network{Kind: NewConnection, PeerAddress: addr, PeerPort: port, Socket: nfd})
}

// AddListenerSource reports each incoming connection on l as a Network
// event of kind NewConnection. The source takes ownership of l and closes
// it on removal, or before returning when registration fails. The returned descriptor identifies the source.
func AddListenerSource(q *queue.Queue, l *net.TCPListener) (int, error) {
	if l == nil {
		return -1, api.NewError(api.ErrCodeInvalidArgument, "add listener source: nil listener")
	}
	fd, err := listenerFD(l)
	if err != nil {
		return -1, err
	}
	if err := q.AddNativeSource(fd, acceptOne, func(int) { _ = l.Close() }); err != nil {
		_ = l.Close()
		return -1, err
	}

	lg := log.WithComponent("sources")
	lg.Debug().
		Str("event", "sources.listener_added").
		Int("fd", fd).
		Str("addr", l.Addr().String()).
		Msg("listener source added")
	return fd, nil
}

type socketState struct {
	addr string
	port uint16
}

func (s *socketState) translate(fd int) *event.Value {
	var b [1]byte
	n, _, err := unix.Recvfrom(fd, b[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
	switch {
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
		return event.NewEmpty()
	case err == nil && n > 0:
		return event.New(Network{Kind: SocketReady, PeerAddress: s.addr, PeerPort: s.port, Socket: fd})
	default:
		return event.New(Network{Kind: ConnectionClosed, PeerAddress: s.addr, PeerPort: s.port, Socket: fd})
	}
}

// AddSocketSource reports readiness of a connected socket: SocketReady
// while unread data is pending, ConnectionClosed once the peer has shut
// down or the connection failed. Both conditions persist until the data is
// read or the source removed. The source owns fd and closes it on removal;
// fd is also closed when registration fails.
func AddSocketSource(q *queue.Queue, fd int) error {
	if fd < 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "add socket source: negative descriptor")
	}
	st := &socketState{}
	if sa, err := unix.Getpeername(fd); err == nil {
		st.addr, st.port = peerOf(sa)
	}
	if err := q.AddNativeSource(fd, st.translate, closeFD); err != nil {
		_ = unix.Close(fd)
		return err
	}

	lg := log.WithComponent("sources")
	lg.Debug().
		Str("event", "sources.socket_added").
		Int("fd", fd).
		Str("peer", st.addr).
		Msg("socket source added")
	return nil
}
