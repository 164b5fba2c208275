// File: sources/signal_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sources

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-events/api"
	"github.com/momentics/hioload-events/core/event"
	"github.com/momentics/hioload-events/core/queue"
	"github.com/momentics/hioload-events/internal/log"
)

// claimed holds the signals routed to some queue in this process.
var claimed = struct {
	sync.Mutex
	set map[syscall.Signal]struct{}
}{set: make(map[syscall.Signal]struct{})}

func claim(sigs []syscall.Signal) error {
	claimed.Lock()
	defer claimed.Unlock()
	for i, s := range sigs {
		if _, ok := claimed.set[s]; ok {
			for _, prev := range sigs[:i] {
				delete(claimed.set, prev)
			}
			return api.NewError(api.ErrCodeAlreadyExists, "signal already routed to a queue").
				WithContext("signal", s.String())
		}
		claimed.set[s] = struct{}{}
	}
	return nil
}

func release(sigs []syscall.Signal) {
	claimed.Lock()
	defer claimed.Unlock()
	for _, s := range sigs {
		delete(claimed.set, s)
	}
}

// AddSignalSource routes sigs to q. While routed, the signals no longer
// trigger their default action. A signal can be routed to one queue at a
// time; removing the source releases it. It returns the descriptor to pass
// to RemoveNativeSource.
func AddSignalSource(q *queue.Queue, sigs ...os.Signal) (int, error) {
	if len(sigs) == 0 {
		return -1, api.NewError(api.ErrCodeInvalidArgument, "add signal source: no signals")
	}
	nums := make([]syscall.Signal, 0, len(sigs))
	for _, s := range sigs {
		n, ok := s.(syscall.Signal)
		if !ok {
			return -1, api.NewError(api.ErrCodeInvalidArgument, "add signal source: not a system signal").
				WithContext("signal", s.String())
		}
		nums = append(nums, n)
	}
	if err := claim(nums); err != nil {
		return -1, err
	}

	b, err := newBridge()
	if err != nil {
		release(nums)
		return -1, err
	}

	ch := make(chan os.Signal, 16)
	done := make(chan struct{})
	var wg sync.WaitGroup
	signal.Notify(ch, sigs...)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case s := <-ch:
				n := s.(syscall.Signal)
				b.push(event.New(Signal{Number: int(n), Name: signalName(n)}))
			case <-done:
				return
			}
		}
	}()

	destroy := func(int) {
		signal.Stop(ch)
		close(done)
		wg.Wait()
		b.close()
		release(nums)
	}
	if err := q.AddNativeSource(b.fd, b.pop, destroy); err != nil {
		destroy(b.fd)
		return -1, err
	}

	lg := log.WithComponent("sources")
	lg.Debug().
		Str("event", "sources.signal_added").
		Int("fd", b.fd).
		Int("signals", len(nums)).
		Msg("signal source added")
	return b.fd, nil
}

func signalName(s syscall.Signal) string {
	if name := unix.SignalName(s); name != "" {
		return name
	}
	return s.String()
}
