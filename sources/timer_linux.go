// File: sources/timer_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sources

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-events/api"
	"github.com/momentics/hioload-events/core/event"
	"github.com/momentics/hioload-events/core/queue"
	"github.com/momentics/hioload-events/internal/log"
)

type timerState struct {
	id        int
	remaining uint64 // ticks left, 0 for unlimited
}

func (s *timerState) translate(fd int) *event.Value {
	var buf [8]byte
	if _, err := unix.Read(fd, buf[:]); err != nil {
		return event.NewEmpty()
	}
	tick := Tick{TimerID: s.id, Expirations: binary.NativeEndian.Uint64(buf[:])}
	if s.remaining == 0 {
		return event.New(tick)
	}
	if tick.Expirations >= s.remaining {
		tick.Expirations = s.remaining
		tick.LastTick = true
		s.remaining = 0
		_ = unix.TimerfdSettime(fd, 0, &unix.ItimerSpec{}, nil)
		return event.New(tick)
	}
	s.remaining -= tick.Expirations
	return event.New(tick)
}

// AddTimerSource arms a monotonic timerfd and registers it with q. The
// returned descriptor identifies the source for RemoveNativeSource.
func AddTimerSource(q *queue.Queue, t Timer) (int, error) {
	if t.Interval <= 0 {
		return -1, api.NewError(api.ErrCodeInvalidArgument, "add timer source: interval must be positive").
			WithContext("timer", t.ID)
	}
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return -1, api.SystemError("timerfd_create", err)
	}

	st := &timerState{id: t.ID}
	if t.Repeats >= 0 {
		st.remaining = uint64(t.Repeats) + 1
	}
	interval := unix.NsecToTimespec(t.Interval.Nanoseconds())
	spec := unix.ItimerSpec{Value: interval, Interval: interval}
	if t.Repeats == 0 {
		spec.Interval = unix.Timespec{}
	}
	if err := unix.TimerfdSettime(fd, 0, &spec, nil); err != nil {
		_ = unix.Close(fd)
		return -1, api.SystemError("timerfd_settime", err).WithContext("timer", t.ID)
	}

	if err := q.AddNativeSource(fd, st.translate, closeFD); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}

	lg := log.WithComponent("sources")
	lg.Debug().
		Str("event", "sources.timer_added").
		Int("fd", fd).
		Int("timer", t.ID).
		Dur("interval", t.Interval).
		Int("repeats", t.Repeats).
		Msg("timer source added")
	return fd, nil
}

func closeFD(fd int) { _ = unix.Close(fd) }
