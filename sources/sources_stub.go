//go:build !linux

// File: sources/sources_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sources

import (
	"net"
	"os"

	"github.com/momentics/hioload-events/api"
	"github.com/momentics/hioload-events/core/queue"
)

func AddSignalSource(*queue.Queue, ...os.Signal) (int, error) { return -1, api.ErrNotSupported }

func AddTimerSource(*queue.Queue, Timer) (int, error) { return -1, api.ErrNotSupported }

func AddWatchSource(*queue.Queue, ...string) (*Watch, error) { return nil, api.ErrNotSupported }

func AddListenerSource(*queue.Queue, *net.TCPListener) (int, error) { return -1, api.ErrNotSupported }

func AddSocketSource(*queue.Queue, int) error { return api.ErrNotSupported }
