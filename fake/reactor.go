// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

// Package fake provides a scripted, in-memory reactor for tests that need
// to control exactly what the multiplexer reports.
package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-events/api"
	"github.com/momentics/hioload-events/reactor"
)

type step struct {
	ready []reactor.Event
	err   error
}

// Multiplexer replays scripted wake cycles. With nothing scripted and no
// pending notification, Wait sleeps for the timeout (at most idleSleep for
// an infinite one) and reports nothing.
type Multiplexer struct {
	mu       sync.Mutex
	fds      map[int]bool
	script   []step
	notified int // fd of a pending notification, or -1
	waits    int
	closed   bool
	wake     chan struct{}
}

const idleSleep = 5 * time.Millisecond

// NewMultiplexer returns an empty fake multiplexer.
func NewMultiplexer() *Multiplexer {
	return &Multiplexer{fds: make(map[int]bool), notified: -1, wake: make(chan struct{}, 1)}
}

// Ready scripts one wake cycle reporting fds as readable.
func (m *Multiplexer) Ready(fds ...int) {
	ready := make([]reactor.Event, len(fds))
	for i, fd := range fds {
		ready[i] = reactor.Event{FD: fd, Flags: reactor.EventRead}
	}
	m.push(step{ready: ready})
}

// Interrupt scripts one wake cycle that reports nothing, like EINTR.
func (m *Multiplexer) Interrupt() { m.push(step{}) }

// Fail scripts one wake cycle that fails with err.
func (m *Multiplexer) Fail(err error) { m.push(step{err: err}) }

func (m *Multiplexer) push(s step) {
	m.mu.Lock()
	m.script = append(m.script, s)
	m.mu.Unlock()
	m.signal()
}

func (m *Multiplexer) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Multiplexer) Add(fd int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fds[fd] {
		return api.NewError(api.ErrCodeAlreadyExists, "fake add").WithContext("fd", fd)
	}
	m.fds[fd] = true
	return nil
}

func (m *Multiplexer) Remove(fd int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.fds, fd)
	return nil
}

func (m *Multiplexer) Wait(events []reactor.Event, timeout time.Duration) (int, error) {
	if s, ok := m.next(); ok {
		return fill(events, s)
	}
	sleep := timeout
	if sleep < 0 {
		sleep = idleSleep
	}
	if sleep > 0 {
		t := time.NewTimer(sleep)
		select {
		case <-m.wake:
		case <-t.C:
		}
		t.Stop()
	}
	if s, ok := m.next(); ok {
		return fill(events, s)
	}
	return 0, nil
}

func (m *Multiplexer) next() (step, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waits++
	if len(m.script) > 0 {
		s := m.script[0]
		m.script = m.script[1:]
		return s, true
	}
	if m.notified >= 0 && m.fds[m.notified] {
		return step{ready: []reactor.Event{{FD: m.notified, Flags: reactor.EventRead}}}, true
	}
	return step{}, false
}

func fill(events []reactor.Event, s step) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return copy(events, s.ready), nil
}

func (m *Multiplexer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Registered reports whether fd is added.
func (m *Multiplexer) Registered(fd int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fds[fd]
}

// Waits counts calls to Wait.
func (m *Multiplexer) Waits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waits
}

// Closed reports whether Close was called.
func (m *Multiplexer) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Notifier stays readable on its multiplexer from Notify until Drain.
type Notifier struct {
	fd     int
	mux    *Multiplexer
	closed bool
}

// NewNotifier returns a notifier using fd as its identity on mux.
func NewNotifier(mux *Multiplexer, fd int) *Notifier {
	return &Notifier{fd: fd, mux: mux}
}

func (n *Notifier) FD() int { return n.fd }

func (n *Notifier) Notify() error {
	n.mux.mu.Lock()
	n.mux.notified = n.fd
	n.mux.mu.Unlock()
	n.mux.signal()
	return nil
}

func (n *Notifier) Drain() error {
	n.mux.mu.Lock()
	if n.mux.notified == n.fd {
		n.mux.notified = -1
	}
	n.mux.mu.Unlock()
	return nil
}

func (n *Notifier) Close() error {
	n.closed = true
	return nil
}

// Closed reports whether Close was called.
func (n *Notifier) Closed() bool { return n.closed }
