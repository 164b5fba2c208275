//go:build linux

// File: cmd/evwatch/runner.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-events/api"
	"github.com/momentics/hioload-events/control"
	"github.com/momentics/hioload-events/core/dispatch"
	"github.com/momentics/hioload-events/core/queue"
	"github.com/momentics/hioload-events/facade"
	"github.com/momentics/hioload-events/internal/log"
	"github.com/momentics/hioload-events/sources"
)

// stopTimerID is reserved for the --duration timer.
const stopTimerID = -1

// runner owns the default queue for one command invocation.
type runner struct {
	q      *queue.Queue
	out    io.Writer
	log    zerolog.Logger
	probes *control.DebugProbes
	srv    *http.Server

	stopSignals map[int]bool
	stop        bool
	dispatched  int
}

func newRunner(cmd *cobra.Command, flags *rootFlags) (*runner, error) {
	var stopAfter time.Duration
	if flags.duration != "" {
		d, err := time.ParseDuration(flags.duration)
		if err != nil {
			return nil, fmt.Errorf("duration: %w", err)
		}
		stopAfter = d
	}

	cfg := control.DefaultConfig()
	if flags.configPath != "" {
		loaded, err := control.LoadConfig(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	log.Configure(log.Config{Level: cfg.LogLevel, Service: "evwatch"})

	r := &runner{
		out:         cmd.OutOrStdout(),
		log:         log.WithComponent("evwatch"),
		stopSignals: make(map[int]bool),
	}
	opts := []queue.Option{queue.WithConfig(cfg)}
	if cfg.Debug {
		r.probes = control.NewDebugProbes()
		opts = append(opts, queue.WithProbes(r.probes))
	}
	if flags.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		if err := control.RegisterEventHeapStats(reg, cfg.MetricsNamespace); err != nil {
			return nil, err
		}
		opts = append(opts, queue.WithMetrics(reg))
		if err := r.serveMetrics(flags.metricsAddr, reg); err != nil {
			return nil, err
		}
	}
	if err := facade.Configure(opts...); err != nil {
		return nil, err
	}
	r.q = facade.Default()

	queue.Handle(r.q, func(s *sources.Signal) error {
		if r.stopSignals[s.Number] {
			r.log.Info().Str("event", "evwatch.stop").Str("signal", s.Name).Msg("stopping")
			r.stop = true
		}
		return nil
	})
	queue.Handle(r.q, func(t *sources.Tick) error {
		if t.TimerID == stopTimerID {
			r.stop = true
		}
		return nil
	})

	if stopAfter > 0 {
		if _, err := sources.AddTimerSource(r.q, sources.Timer{ID: stopTimerID, Interval: stopAfter}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *runner) serveMetrics(addr string, reg *prometheus.Registry) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.Get("/debug/state", r.serveState)
	r.srv = &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := r.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.Error().Err(err).Str("event", "evwatch.metrics_failed").Msg("metrics server stopped")
		}
	}()
	r.log.Info().Str("event", "evwatch.metrics").Str("addr", ln.Addr().String()).Msg("serving metrics")
	return nil
}

// serveState writes the debug probes as JSON. Probes read queue state
// without the owner goroutine, so only the lock-protected counters are
// exact.
func (r *runner) serveState(w http.ResponseWriter, _ *http.Request) {
	if r.probes == nil {
		http.Error(w, "debug probes disabled", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(r.probes.DumpState())
}

// stopOn ends the loop on the given signals, skipping any the command
// routes itself.
func (r *runner) stopOn(skip map[int]bool, sigs ...syscall.Signal) error {
	var claim []os.Signal
	for _, s := range sigs {
		if skip[int(s)] {
			continue
		}
		r.stopSignals[int(s)] = true
		claim = append(claim, s)
	}
	if len(claim) == 0 {
		return nil
	}
	_, err := sources.AddSignalSource(r.q, claim...)
	return err
}

// loop waits until a handler sets stop. Callback errors are logged and do
// not end the loop.
func (r *runner) loop() error {
	defer r.shutdown()
	for !r.stop {
		n, err := r.q.Wait(queue.Infinite)
		r.dispatched += n
		if err != nil {
			if callbackOnly(err) {
				r.log.Warn().Err(err).Str("event", "evwatch.callback_failed").Msg("callback failed")
				continue
			}
			return err
		}
	}
	return nil
}

// callbackOnly reports whether err carries nothing but callback failures.
// Queue failures may be merged into the same *dispatch.Errors.
func callbackOnly(err error) bool {
	var cbErrs *dispatch.Errors
	if !errors.As(err, &cbErrs) {
		return false
	}
	return !errors.Is(err, api.ErrSystem) && !errors.Is(err, api.ErrQueueClosed)
}

func (r *runner) shutdown() {
	if r.probes != nil {
		r.log.Debug().Str("event", "evwatch.state").Interface("state", r.probes.DumpState()).Msg("final state")
	}
	if r.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = r.srv.Shutdown(ctx)
	}
	if err := r.q.Close(); err != nil {
		r.log.Error().Err(err).Str("event", "evwatch.close_failed").Msg("queue close failed")
	}
	r.log.Info().Str("event", "evwatch.done").Int("dispatched", r.dispatched).Msg("done")
}

func (r *runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}
