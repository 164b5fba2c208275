// File: sources/payloads.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sources

import (
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/momentics/hioload-events/core/event"
)

// Signal is delivered once per received signal.
type Signal struct {
	Number int
	Name   string
}

func (Signal) EventGroup() event.GroupKey { return systemGroup() }

// Timer describes a periodic timer. The first tick fires one Interval after
// registration. Repeats counts the ticks after the first one; a negative
// value repeats until the source is removed.
type Timer struct {
	ID       int
	Interval time.Duration
	Repeats  int
}

// Tick reports timer expirations since the previous tick. LastTick is set
// on the final tick of a finite timer, after which it is disarmed.
type Tick struct {
	TimerID     int
	Expirations uint64
	LastTick    bool
}

func (Tick) EventGroup() event.GroupKey { return systemGroup() }

// FileChange reports one filesystem notification.
type FileChange struct {
	Path string
	Op   fsnotify.Op
}

func (FileChange) EventGroup() event.GroupKey { return fileSystemGroup() }

// WatchError carries an error reported by the watcher backend.
type WatchError struct {
	Err error
}

func (WatchError) EventGroup() event.GroupKey { return fileSystemGroup() }

// NetworkKind distinguishes network notifications.
type NetworkKind int

const (
	NewConnection NetworkKind = iota
	SocketReady
	ConnectionClosed
)

func (k NetworkKind) String() string {
	switch k {
	case NewConnection:
		return "new_connection"
	case SocketReady:
		return "socket_ready"
	case ConnectionClosed:
		return "connection_closed"
	default:
		return "unknown"
	}
}

// Network reports listener and socket activity. For NewConnection, Socket
// is a freshly accepted non-blocking descriptor owned by the receiver.
type Network struct {
	Kind        NetworkKind
	PeerAddress string
	PeerPort    uint16
	Socket      int
}

func (Network) EventGroup() event.GroupKey { return networkGroup() }
