// File: core/queue/post.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package queue

import (
	"github.com/momentics/hioload-events/api"
	"github.com/momentics/hioload-events/core/event"
)

// Send takes ownership of ev's payload and queues it for dispatch on the
// owner goroutine, waking a blocked Wait. Safe from any goroutine. Events
// sent this way are dispatched in the order they were sent. On error ev is
// left untouched.
func (q *Queue) Send(ev *event.Value) error {
	if !ev.Valid() {
		return api.NewError(api.ErrCodeInvalidArgument, "send: empty event value")
	}
	q.postMu.Lock()
	defer q.postMu.Unlock()
	if q.closed.Load() {
		return api.ErrQueueClosed
	}
	q.posted.Add(ev.Move())
	q.metrics.Posted.Inc()
	return q.notifier.Notify()
}

// Post wraps payload and sends it to q.
func Post[T any](q *Queue, payload T) error {
	ev := event.New(payload)
	if err := q.Send(ev); err != nil {
		ev.Destroy()
		return err
	}
	return nil
}

// wake interrupts a blocked Wait without posting anything.
func (q *Queue) wake() {
	q.postMu.Lock()
	defer q.postMu.Unlock()
	if !q.closed.Load() {
		_ = q.notifier.Notify()
	}
}

// takePosted drains the notifier and removes every pending event, oldest
// first. The notifier is drained before the FIFO is read so a concurrent
// Send always leaves either its event or a fresh notification behind.
func (q *Queue) takePosted() ([]*event.Value, error) {
	q.postMu.Lock()
	defer q.postMu.Unlock()
	err := q.notifier.Drain()
	n := q.posted.Length()
	if n == 0 {
		return nil, err
	}
	out := make([]*event.Value, 0, n)
	for q.posted.Length() > 0 {
		out = append(out, q.posted.Remove().(*event.Value))
	}
	return out, err
}
