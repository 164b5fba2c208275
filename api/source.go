// File: api/source.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Contracts between the event queue and the producers that feed it.

package api

import "github.com/momentics/hioload-events/core/event"

// Translator converts the readiness of a native handle into an event.
// It must not block beyond what the signaled readiness allows and must not
// fail: when nothing meaningful is available it returns event.NewEmpty()
// (a nil result is treated the same way).
type Translator func(fd int) *event.Value

// Destructor releases whatever is associated with a native handle's
// registration: closing descriptors, stopping goroutines, freeing state.
type Destructor func(fd int)

// Callback receives a dispatched event. The Value stays owned by the
// queue; callbacks that need to keep the payload must Move it out.
type Callback func(ev *event.Value) error

// Debug exposes runtime introspection.
type Debug interface {
	// DumpState emits a snapshot of system state for diagnostics.
	DumpState() map[string]any

	// RegisterProbe dynamically registers new debug probes.
	RegisterProbe(name string, fn func() any)
}
