// File: sources/bridge_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// bridge hands payloads produced on helper goroutines to the owner goroutine
// of a queue. Producers append to a FIFO and bump a semaphore eventfd; the
// translator consumes one count and one payload per readiness.

package sources

import (
	"encoding/binary"
	"sync"

	fifo "github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-events/api"
	"github.com/momentics/hioload-events/core/event"
)

type bridge struct {
	fd int

	mu      sync.Mutex
	pending *fifo.Queue
	closed  bool
}

func newBridge() (*bridge, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC|unix.EFD_SEMAPHORE)
	if err != nil {
		return nil, api.SystemError("eventfd", err)
	}
	return &bridge{fd: fd, pending: fifo.New()}, nil
}

// push takes ownership of ev. After close it is destroyed instead.
func (b *bridge) push(ev *event.Value) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		ev.Destroy()
		return
	}
	b.pending.Add(ev)
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)
	_, _ = unix.Write(b.fd, one[:])
}

// pop is a Translator: one readiness, one payload.
func (b *bridge) pop(int) *event.Value {
	var buf [8]byte
	if _, err := unix.Read(b.fd, buf[:]); err != nil {
		return event.NewEmpty()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending.Length() == 0 {
		return event.NewEmpty()
	}
	return b.pending.Remove().(*event.Value)
}

func (b *bridge) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for b.pending.Length() > 0 {
		b.pending.Remove().(*event.Value).Destroy()
	}
	_ = unix.Close(b.fd)
}
