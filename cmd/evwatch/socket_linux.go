// File: cmd/evwatch/socket_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

func listenTCP(addr string) (*net.TCPListener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen address: %w", err)
	}
	return net.ListenTCP("tcp", tcpAddr)
}

// readSocket reads pending data; ok turns false once the peer is gone.
func readSocket(fd int, buf []byte) (n int, ok bool) {
	n, err := unix.Read(fd, buf)
	switch {
	case errors.Is(err, unix.EAGAIN):
		return 0, true
	case err != nil || n == 0:
		return 0, false
	}
	return n, true
}

func writeSocket(fd int, data []byte) (int, error) {
	return unix.Write(fd, data)
}
