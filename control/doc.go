// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, runtime metrics and debug introspection for event queues.
//
// Provides:
//   - Queue configuration with defaults, validation and YAML loading
//   - Prometheus counters and gauges per queue, plus event heap accounting
//   - Named debug probes exported as a state snapshot
package control
