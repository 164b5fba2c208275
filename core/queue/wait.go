// File: core/queue/wait.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The owner loop: block on the multiplexer, translate ready sources, drain
// posted events and dispatch everything synchronously.

package queue

import (
	"context"
	"errors"
	"time"

	"github.com/momentics/hioload-events/api"
	"github.com/momentics/hioload-events/core/dispatch"
	"github.com/momentics/hioload-events/core/event"
	"github.com/momentics/hioload-events/reactor"
)

// Wait blocks until at least one event has been dispatched or timeout
// elapses, and returns the number of events dispatched. Infinite blocks
// without a deadline; zero behaves like Poll. Readiness that translates to
// the empty sentinel does not end the wait. An interrupted wait returns
// (0, nil). Callback errors are returned as *dispatch.Errors after every
// ready event has been delivered.
func (q *Queue) Wait(timeout time.Duration) (int, error) {
	if timeout == 0 {
		return q.run(context.Background(), 0, false)
	}
	return q.run(context.Background(), timeout, true)
}

// Poll dispatches whatever is ready without blocking.
func (q *Queue) Poll() (int, error) {
	return q.run(context.Background(), 0, false)
}

// WaitContext is Wait bounded by ctx instead of a timeout. When ctx ends
// before anything was dispatched its error is returned.
func (q *Queue) WaitContext(ctx context.Context) (int, error) {
	timeout := Infinite
	if dl, ok := ctx.Deadline(); ok {
		timeout = max(time.Until(dl), 0)
	}
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, q.wake)
		defer stop()
	}
	return q.run(ctx, timeout, true)
}

func (q *Queue) run(ctx context.Context, timeout time.Duration, block bool) (int, error) {
	if q.closed.Load() {
		return 0, api.ErrQueueClosed
	}
	if !q.state.CompareAndSwap(int32(Idle), int32(Waiting)) {
		return 0, api.ErrWaitInProgress
	}
	defer q.state.Store(int32(Idle))

	finite := block && timeout >= 0
	var deadline time.Time
	if finite {
		deadline = time.Now().Add(timeout)
	}

	var errs error
	for {
		wait := Infinite
		switch {
		case !block:
			wait = 0
		case finite:
			wait = max(time.Until(deadline), 0)
		}

		q.state.Store(int32(Waiting))
		n, err := q.mux.Wait(q.ready, wait)
		if err != nil {
			return 0, dispatch.Merge(errs, err)
		}
		q.metrics.WakeCycles.Inc()

		q.state.Store(int32(Dispatching))
		delivered, err := q.dispatchReady(q.ready[:n])
		errs = dispatch.Merge(errs, err)
		if delivered > 0 || !block {
			return delivered, errs
		}
		if err := ctx.Err(); err != nil {
			return 0, dispatch.Merge(errs, err)
		}
		if finite && !time.Now().Before(deadline) {
			return 0, errs
		}
		// Only sentinels or an interrupted syscall; wait out the rest.
	}
}

// dispatchReady handles one batch of readiness notifications.
func (q *Queue) dispatchReady(ready []reactor.Event) (int, error) {
	delivered := 0
	var errs error
	notifier := q.notifier.FD()
	for _, r := range ready {
		if r.FD == notifier {
			n, err := q.dispatchPosted()
			delivered += n
			errs = dispatch.Merge(errs, err)
			continue
		}
		// A callback earlier in this batch may have removed the source.
		src := q.lookupSource(r.FD)
		if src == nil {
			continue
		}
		ok, err := q.deliver(src.translate(r.FD))
		if ok {
			delivered++
		}
		errs = dispatch.Merge(errs, err)
	}
	return delivered, errs
}

func (q *Queue) dispatchPosted() (int, error) {
	posted, err := q.takePosted()
	if err != nil {
		q.log.Warn().
			Err(err).
			Str("event", "queue.notifier_drain_failed").
			Msg("notifier drain failed")
	}
	delivered := 0
	var errs error
	for _, ev := range posted {
		ok, err := q.deliver(ev)
		if ok {
			delivered++
		}
		errs = dispatch.Merge(errs, err)
	}
	return delivered, errs
}

// deliver dispatches ev unless it is the sentinel, then destroys it.
func (q *Queue) deliver(ev *event.Value) (bool, error) {
	if event.IsEmpty(ev) {
		q.metrics.Ignored.Inc()
		ev.Destroy()
		return false, nil
	}
	defer ev.Destroy()

	name := ev.TypeName()
	n, err := q.registry.Dispatch(ev)
	q.metrics.Dispatched.Inc()
	if err != nil {
		var cbErrs *dispatch.Errors
		if errors.As(err, &cbErrs) {
			q.metrics.CallbackErrors.Add(float64(len(cbErrs.Errs)))
		}
		q.log.Debug().
			Err(err).
			Str("event", "queue.callback_failed").
			Str("type", name).
			Msg("event callback failed")
	}
	if n == 0 {
		q.log.Trace().
			Str("event", "queue.unhandled").
			Str("type", name).
			Msg("event dispatched without callbacks")
	}
	return true, err
}
