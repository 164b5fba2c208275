// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral interfaces for readiness multiplexing.

package reactor

import (
	"math"
	"time"
)

// Flags describes the readiness reported for a descriptor.
type Flags uint32

const (
	EventRead Flags = 1 << iota
	EventWrite
	EventError
	EventHangup
)

// Event contains readiness information returned by Wait.
type Event struct {
	FD    int
	Flags Flags
}

// Multiplexer waits for readiness across a set of descriptors.
// It is owned by a single goroutine; none of its methods are safe for
// concurrent use.
type Multiplexer interface {
	// Add registers fd for read readiness. Registering the same fd twice
	// fails with api.ErrAlreadyExists.
	Add(fd int) error

	// Remove deregisters fd. Descriptors the kernel no longer knows are
	// treated as already removed.
	Remove(fd int) error

	// Wait blocks up to timeout (negative: forever, zero: non-blocking) and
	// writes ready descriptors into events. An interrupted wait reports zero
	// events and no error.
	Wait(events []Event, timeout time.Duration) (int, error)

	// Close releases the multiplexer handle.
	Close() error
}

// Notifier is a thread-safe wake-up channel backed by a descriptor that the
// owning Multiplexer watches.
type Notifier interface {
	// FD returns the descriptor to register for readiness.
	FD() int

	// Notify makes FD readable. Safe from any goroutine.
	Notify() error

	// Drain consumes pending notifications so FD stops being readable.
	Drain() error

	// Close releases the descriptor.
	Close() error
}

// timeoutMillis converts timeout into the millisecond argument of the OS
// wait call, rounding positive sub-millisecond remainders up so a caller
// never spins on a zero timeout before its deadline.
func timeoutMillis(timeout time.Duration) int {
	switch {
	case timeout < 0:
		return -1
	case timeout == 0:
		return 0
	}
	ms := (timeout + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}
