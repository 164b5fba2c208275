// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus instrumentation for event queues.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/momentics/hioload-events/core/event"
)

// Metrics holds the collectors of one queue. All series carry a constant
// "queue" label so several queues can share a registry.
type Metrics struct {
	Dispatched     prometheus.Counter
	Ignored        prometheus.Counter
	Posted         prometheus.Counter
	CallbackErrors prometheus.Counter
	WakeCycles     prometheus.Counter
	Sources        prometheus.Gauge
}

// NewMetrics creates the queue collectors and registers them on reg.
// A nil reg yields working but unregistered collectors.
func NewMetrics(reg prometheus.Registerer, namespace, queue string) *Metrics {
	f := promauto.With(reg)
	labels := prometheus.Labels{"queue": queue}
	return &Metrics{
		Dispatched: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "events_dispatched_total",
			Help:        "Events delivered to callbacks.",
			ConstLabels: labels,
		}),
		Ignored: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "events_ignored_total",
			Help:        "Readiness notifications translated to the empty sentinel.",
			ConstLabels: labels,
		}),
		Posted: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "events_posted_total",
			Help:        "Events injected with Send.",
			ConstLabels: labels,
		}),
		CallbackErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "callback_errors_total",
			Help:        "Errors returned by event callbacks.",
			ConstLabels: labels,
		}),
		WakeCycles: f.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "wake_cycles_total",
			Help:        "Returns from the readiness multiplexer.",
			ConstLabels: labels,
		}),
		Sources: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "native_sources",
			Help:        "Native sources currently registered.",
			ConstLabels: labels,
		}),
	}
}

// RegisterEventHeapStats exports the process-wide payload heap counters.
func RegisterEventHeapStats(reg prometheus.Registerer, namespace string) error {
	allocs := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_heap_allocations_total",
		Help:      "Event payloads placed on the heap.",
	}, func() float64 {
		a, _ := event.HeapStats()
		return float64(a)
	})
	releases := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_heap_releases_total",
		Help:      "Heap event payloads released.",
	}, func() float64 {
		_, r := event.HeapStats()
		return float64(r)
	})
	if err := reg.Register(allocs); err != nil {
		return err
	}
	return reg.Register(releases)
}
