// File: core/queue/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Queue is a single-owner reactor: it multiplexes native readiness sources
// and events posted from any goroutine, translates readiness into typed
// events and dispatches them synchronously on the goroutine calling Wait or
// Poll. Apart from Send, all methods belong to that owner goroutine.

package queue

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	fifo "github.com/eapache/queue"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-events/api"
	"github.com/momentics/hioload-events/control"
	"github.com/momentics/hioload-events/core/dispatch"
	"github.com/momentics/hioload-events/core/event"
	"github.com/momentics/hioload-events/internal/log"
	"github.com/momentics/hioload-events/reactor"
)

// Infinite makes Wait block until an event is delivered.
const Infinite time.Duration = -1

// State is the reactor state of a queue.
type State int32

const (
	Idle State = iota
	Waiting
	Dispatching
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Waiting:
		return "waiting"
	case Dispatching:
		return "dispatching"
	default:
		return "unknown"
	}
}

// nativeSource is one entry of the native source table.
type nativeSource struct {
	translate api.Translator
	destroy   api.Destructor
}

// Queue owns a callback registry, a native source table and the reactor
// primitives. Create it with New and release it with Close.
type Queue struct {
	id      string
	cfg     *control.Config
	log     zerolog.Logger
	metrics *control.Metrics

	registry *dispatch.Registry
	mux      reactor.Multiplexer
	notifier reactor.Notifier
	ready    []reactor.Event

	mu      sync.RWMutex // guards sources
	sources map[int]*nativeSource

	postMu sync.Mutex // guards posted and notifier use by senders
	posted *fifo.Queue
	closed atomic.Bool

	state atomic.Int32
}

// Option customizes queue construction.
type Option func(*options)

type options struct {
	cfg      *control.Config
	logger   *zerolog.Logger
	reg      prometheus.Registerer
	probes   api.Debug
	mux      reactor.Multiplexer
	notifier reactor.Notifier
}

// WithConfig replaces control.DefaultConfig().
func WithConfig(cfg *control.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// WithMetrics registers the queue's collectors on reg. Queue names must be
// unique per registry.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

// WithProbes publishes the queue's state through d.
func WithProbes(d api.Debug) Option {
	return func(o *options) { o.probes = d }
}

// WithReactor supplies the multiplexer and notifier in place of the
// platform ones. The queue takes ownership of both.
func WithReactor(mux reactor.Multiplexer, notifier reactor.Notifier) Option {
	return func(o *options) {
		o.mux = mux
		o.notifier = notifier
	}
}

// New creates a queue with its own multiplexer and notifier.
func New(opts ...Option) (*Queue, error) {
	o := options{cfg: control.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	mux, notifier := o.mux, o.notifier
	if mux == nil || notifier == nil {
		var err error
		if mux, err = reactor.NewMultiplexer(o.cfg.MaxEvents); err != nil {
			return nil, err
		}
		if notifier, err = reactor.NewNotifier(); err != nil {
			_ = mux.Close()
			return nil, err
		}
	}
	if err := mux.Add(notifier.FD()); err != nil {
		_ = notifier.Close()
		_ = mux.Close()
		return nil, err
	}

	q := &Queue{
		id:       uuid.NewString(),
		cfg:      o.cfg,
		registry: dispatch.NewRegistry(),
		mux:      mux,
		notifier: notifier,
		ready:    make([]reactor.Event, o.cfg.MaxEvents),
		sources:  make(map[int]*nativeSource),
		posted:   fifo.New(),
	}

	if o.logger != nil {
		q.log = *o.logger
	} else {
		q.log = log.WithComponent("queue")
		if o.cfg.LogLevel != "" {
			if lvl, err := zerolog.ParseLevel(o.cfg.LogLevel); err == nil {
				q.log = q.log.Level(lvl)
			}
		}
	}
	q.log = q.log.With().Str("queue", o.cfg.Name).Str("queue_id", q.id).Logger()

	reg := o.reg
	if reg == nil && o.cfg.Metrics {
		reg = prometheus.DefaultRegisterer
	}
	q.metrics = control.NewMetrics(reg, o.cfg.MetricsNamespace, o.cfg.Name)

	if o.probes != nil {
		o.probes.RegisterProbe("queue."+o.cfg.Name, func() any { return q.Stats() })
	}

	q.log.Debug().
		Str("event", "queue.created").
		Int("max_events", o.cfg.MaxEvents).
		Msg("event queue created")
	return q, nil
}

// ID returns the instance identifier carried in the queue's logs.
func (q *Queue) ID() string { return q.id }

// Name returns the configured queue name.
func (q *Queue) Name() string { return q.cfg.Name }

// State reports whether the owner is idle, blocked or dispatching.
func (q *Queue) State() State { return State(q.state.Load()) }

// Stats returns a diagnostic snapshot.
func (q *Queue) Stats() map[string]any {
	q.mu.RLock()
	sources := len(q.sources)
	q.mu.RUnlock()
	q.postMu.Lock()
	pending := q.posted.Length()
	q.postMu.Unlock()
	return map[string]any{
		"id":       q.id,
		"state":    q.State().String(),
		"sources":  sources,
		"bindings": q.registry.Len(),
		"pending":  pending,
		"closed":   q.closed.Load(),
	}
}

// Close removes every native source, invoking each destructor, destroys
// events still pending and releases the reactor primitives. It fails with
// api.ErrWaitInProgress when called while the queue is waiting or
// dispatching. Closing twice is a no-op.
func (q *Queue) Close() error {
	if q.State() != Idle {
		return api.ErrWaitInProgress
	}

	q.postMu.Lock()
	if q.closed.Load() {
		q.postMu.Unlock()
		return nil
	}
	q.closed.Store(true)
	dropped := 0
	for q.posted.Length() > 0 {
		q.posted.Remove().(*event.Value).Destroy()
		dropped++
	}
	q.postMu.Unlock()

	q.mu.Lock()
	fds := make([]int, 0, len(q.sources))
	for fd := range q.sources {
		fds = append(fds, fd)
	}
	sort.Ints(fds)
	srcs := q.sources
	q.sources = make(map[int]*nativeSource)
	q.mu.Unlock()

	var errs error
	for _, fd := range fds {
		if err := q.mux.Remove(fd); err != nil {
			errs = dispatch.Merge(errs, err)
		}
		if d := srcs[fd].destroy; d != nil {
			d(fd)
		}
		q.metrics.Sources.Dec()
	}
	if err := q.mux.Remove(q.notifier.FD()); err != nil {
		errs = dispatch.Merge(errs, err)
	}
	if err := q.notifier.Close(); err != nil {
		errs = dispatch.Merge(errs, api.SystemError("close eventfd", err))
	}
	if err := q.mux.Close(); err != nil {
		errs = dispatch.Merge(errs, api.SystemError("close epoll", err))
	}

	q.log.Info().
		Str("event", "queue.closed").
		Int("sources", len(fds)).
		Int("dropped", dropped).
		Msg("event queue closed")
	return errs
}
