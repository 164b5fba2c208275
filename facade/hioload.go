// File: facade/hioload.go
// Process-wide default event queue.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The default queue is created on first use and lives for the whole process.
// The package-level functions below forward to it, so small programs can bind
// callbacks, register sources and run the wait loop without carrying a
// *queue.Queue around. Like any queue, it must be waited on from a single
// goroutine; only Send and Post are safe from elsewhere.

package facade

import (
	"sync"
	"time"

	"github.com/momentics/hioload-events/api"
	"github.com/momentics/hioload-events/core/dispatch"
	"github.com/momentics/hioload-events/core/event"
	"github.com/momentics/hioload-events/core/queue"
	"github.com/momentics/hioload-events/internal/log"
)

// lazyQueue builds its queue once. A failed build is remembered so every
// later call reports the same error.
type lazyQueue struct {
	mu      sync.Mutex
	once    sync.Once
	q       *queue.Queue
	err     error
	options []queue.Option
}

var std lazyQueue

func (l *lazyQueue) configure(opts []queue.Option) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.q != nil || l.err != nil {
		return api.NewError(api.ErrCodeAlreadyExists, "default queue already created")
	}
	l.options = append([]queue.Option(nil), opts...)
	return nil
}

func (l *lazyQueue) get() *queue.Queue {
	l.once.Do(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.q, l.err = queue.New(l.options...)
		if l.err != nil {
			lg := log.WithComponent("facade")
			lg.Error().
				Err(l.err).
				Str("event", "facade.default_failed").
				Msg("default queue construction failed")
		}
	})
	if l.err != nil {
		panic(l.err)
	}
	return l.q
}

// Configure sets the options used to build the default queue. It fails
// with api.ErrAlreadyExists once construction has been attempted.
func Configure(opts ...queue.Option) error {
	return std.configure(opts)
}

// Default returns the process-wide queue, creating it on first call.
// It panics if the host cannot provide epoll or eventfd, and keeps
// panicking with the same error on every later call.
func Default() *queue.Queue {
	return std.get()
}

// On binds cb to payload type T on the default queue.
func On[T any](cb api.Callback) dispatch.Binding {
	return queue.On[T](Default(), cb)
}

// OnGroup binds cb to group G on the default queue.
func OnGroup[G any](cb api.Callback) dispatch.Binding {
	return queue.OnGroup[G](Default(), cb)
}

// Handle binds a typed payload callback on the default queue.
func Handle[T any](fn func(payload *T) error) dispatch.Binding {
	return queue.Handle(Default(), fn)
}

// Unbind removes a binding from the default queue.
func Unbind(b dispatch.Binding) bool {
	return Default().Unbind(b)
}

// Send transfers ev to the default queue.
func Send(ev *event.Value) error {
	return Default().Send(ev)
}

// Post wraps payload and sends it to the default queue.
func Post[T any](payload T) error {
	return queue.Post(Default(), payload)
}

// Wait runs the default queue's wait loop.
func Wait(timeout time.Duration) (int, error) {
	return Default().Wait(timeout)
}

// Poll dispatches whatever the default queue has ready.
func Poll() (int, error) {
	return Default().Poll()
}

// AddNativeSource registers fd with the default queue.
func AddNativeSource(fd int, translate api.Translator, destroy api.Destructor) error {
	return Default().AddNativeSource(fd, translate, destroy)
}

// RemoveNativeSource deregisters fd from the default queue.
func RemoveNativeSource(fd int) error {
	return Default().RemoveNativeSource(fd)
}
