// File: core/queue/sources.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package queue

import (
	"github.com/momentics/hioload-events/api"
)

// AddNativeSource registers fd for readiness. Whenever fd becomes readable
// translate is called on the owner goroutine and its result dispatched.
// destroy, which may be nil, runs when the source is removed or the queue
// is closed.
func (q *Queue) AddNativeSource(fd int, translate api.Translator, destroy api.Destructor) error {
	if q.closed.Load() {
		return api.ErrQueueClosed
	}
	if fd < 0 || translate == nil {
		return api.NewError(api.ErrCodeInvalidArgument, "add native source: need a descriptor and a translator").
			WithContext("fd", fd)
	}
	if fd == q.notifier.FD() {
		return api.NewError(api.ErrCodeAlreadyExists, "add native source: descriptor is the queue notifier").
			WithContext("fd", fd)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.sources[fd]; ok {
		return api.NewError(api.ErrCodeAlreadyExists, "add native source").WithContext("fd", fd)
	}
	if err := q.mux.Add(fd); err != nil {
		q.log.Error().
			Err(err).
			Str("event", "queue.source_add_failed").
			Int("fd", fd).
			Msg("native source registration failed")
		return err
	}
	q.sources[fd] = &nativeSource{translate: translate, destroy: destroy}
	q.metrics.Sources.Inc()

	q.log.Debug().
		Str("event", "queue.source_added").
		Int("fd", fd).
		Bool("destructor", destroy != nil).
		Msg("native source added")
	return nil
}

// RemoveNativeSource deregisters fd and runs its destructor immediately.
// Removing a descriptor that is not registered returns api.ErrNotFound and
// changes nothing.
func (q *Queue) RemoveNativeSource(fd int) error {
	q.mu.Lock()
	src, ok := q.sources[fd]
	if !ok {
		q.mu.Unlock()
		return api.NewError(api.ErrCodeNotFound, "remove native source").WithContext("fd", fd)
	}
	delete(q.sources, fd)
	q.mu.Unlock()

	err := q.mux.Remove(fd)
	if err != nil {
		q.log.Error().
			Err(err).
			Str("event", "queue.source_remove_failed").
			Int("fd", fd).
			Msg("native source deregistration failed")
	}
	if src.destroy != nil {
		src.destroy(fd)
	}
	q.metrics.Sources.Dec()

	q.log.Debug().
		Str("event", "queue.source_removed").
		Int("fd", fd).
		Msg("native source removed")
	return err
}

// HasNativeSource reports whether fd is registered.
func (q *Queue) HasNativeSource(fd int) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, ok := q.sources[fd]
	return ok
}

func (q *Queue) lookupSource(fd int) *nativeSource {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.sources[fd]
}
