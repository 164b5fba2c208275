// File: core/queue/bind.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package queue

import (
	"github.com/momentics/hioload-events/api"
	"github.com/momentics/hioload-events/core/dispatch"
	"github.com/momentics/hioload-events/core/event"
)

// Bind adds cb for events of payload type key. Several callbacks may be
// bound to one key; they run in the order they were bound.
func (q *Queue) Bind(key event.TypeKey, cb api.Callback) dispatch.Binding {
	return q.registry.Bind(key, cb)
}

// BindGroup adds cb for every event whose payload type belongs to group
// key. Group callbacks run after the exact-type callbacks.
func (q *Queue) BindGroup(key event.GroupKey, cb api.Callback) dispatch.Binding {
	return q.registry.BindGroup(key, cb)
}

// Unbind removes a registration made by Bind or BindGroup.
func (q *Queue) Unbind(b dispatch.Binding) bool {
	return q.registry.Unbind(b)
}

// On binds cb to payload type T.
func On[T any](q *Queue, cb api.Callback) dispatch.Binding {
	return q.Bind(event.KeyFor[T](), cb)
}

// OnGroup binds cb to the group marked by G.
func OnGroup[G any](q *Queue, cb api.Callback) dispatch.Binding {
	return q.BindGroup(event.GroupFor[G](), cb)
}

// Handle binds a callback that receives the typed payload of T.
func Handle[T any](q *Queue, fn func(payload *T) error) dispatch.Binding {
	return On[T](q, func(ev *event.Value) error {
		return fn(event.Extract[T](ev))
	})
}
