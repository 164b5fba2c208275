// File: core/dispatch/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Registry maps TypeKeys and GroupKeys to ordered lists of callbacks.
// Every key may carry any number of callbacks; they fire in registration
// order. Updates are copy-on-write, so binding or unbinding from inside a
// callback is safe and takes effect on the next dispatch.

package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-events/api"
	"github.com/momentics/hioload-events/core/event"
)

// Binding identifies one registration. The zero Binding matches nothing.
type Binding struct {
	id    uint64
	key   uint64
	group bool
}

// Valid reports whether b was returned by Bind or BindGroup.
func (b Binding) Valid() bool { return b.id != 0 }

type entry struct {
	id uint64
	cb api.Callback
}

type table struct {
	types  map[event.TypeKey][]entry
	groups map[event.GroupKey][]entry
	size   int
}

// Registry is safe for concurrent use.
type Registry struct {
	mu     sync.Mutex // serializes writers
	snap   atomic.Pointer[table]
	nextID uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.snap.Store(&table{
		types:  map[event.TypeKey][]entry{},
		groups: map[event.GroupKey][]entry{},
	})
	return r
}

// Bind appends cb to the callbacks of payload type key.
func (r *Registry) Bind(key event.TypeKey, cb api.Callback) Binding {
	if cb == nil {
		panic("dispatch: nil callback")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	old := r.snap.Load()
	next := old.clone()
	next.types[key] = appendEntry(old.types[key], entry{id: r.nextID, cb: cb})
	next.size++
	r.snap.Store(next)
	return Binding{id: r.nextID, key: uint64(key)}
}

// BindGroup appends cb to the callbacks of event group key.
func (r *Registry) BindGroup(key event.GroupKey, cb api.Callback) Binding {
	if cb == nil {
		panic("dispatch: nil callback")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	old := r.snap.Load()
	next := old.clone()
	next.groups[key] = appendEntry(old.groups[key], entry{id: r.nextID, cb: cb})
	next.size++
	r.snap.Store(next)
	return Binding{id: r.nextID, key: uint64(key), group: true}
}

// Unbind removes one registration. It reports false when b is not bound.
func (r *Registry) Unbind(b Binding) bool {
	if !b.Valid() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.snap.Load()
	var list []entry
	if b.group {
		list = old.groups[event.GroupKey(b.key)]
	} else {
		list = old.types[event.TypeKey(b.key)]
	}
	kept := make([]entry, 0, len(list))
	for _, e := range list {
		if e.id != b.id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(list) {
		return false
	}
	next := old.clone()
	switch {
	case b.group && len(kept) == 0:
		delete(next.groups, event.GroupKey(b.key))
	case b.group:
		next.groups[event.GroupKey(b.key)] = kept
	case len(kept) == 0:
		delete(next.types, event.TypeKey(b.key))
	default:
		next.types[event.TypeKey(b.key)] = kept
	}
	next.size--
	r.snap.Store(next)
	return true
}

// Lookup returns the callbacks bound to key, in registration order.
func (r *Registry) Lookup(key event.TypeKey) []api.Callback {
	return callbacks(r.snap.Load().types[key])
}

// LookupGroup returns the callbacks bound to group key, in registration order.
func (r *Registry) LookupGroup(key event.GroupKey) []api.Callback {
	if key == event.NoGroup {
		return nil
	}
	return callbacks(r.snap.Load().groups[key])
}

// Len returns the total number of registrations.
func (r *Registry) Len() int {
	return r.snap.Load().size
}

// Dispatch invokes the exact-type callbacks of ev, then the callbacks of its
// group. Every callback runs even when an earlier one fails; failures are
// returned together as *Errors. The first result is the number of
// callbacks invoked.
func (r *Registry) Dispatch(ev *event.Value) (int, error) {
	t := r.snap.Load()
	key, group, name := ev.Type(), ev.Group(), ev.TypeName()
	var errs []error
	n := 0
	for _, e := range t.types[key] {
		n++
		if err := e.cb(ev); err != nil {
			errs = append(errs, err)
		}
	}
	if group != event.NoGroup {
		for _, e := range t.groups[group] {
			n++
			if err := e.cb(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) == 0 {
		return n, nil
	}
	return n, &Errors{Event: name, Errs: errs}
}

func (t *table) clone() *table {
	next := &table{
		types:  make(map[event.TypeKey][]entry, len(t.types)+1),
		groups: make(map[event.GroupKey][]entry, len(t.groups)+1),
		size:   t.size,
	}
	for k, v := range t.types {
		next.types[k] = v
	}
	for k, v := range t.groups {
		next.groups[k] = v
	}
	return next
}

// appendEntry never writes into the backing array of a published slice.
func appendEntry(list []entry, e entry) []entry {
	out := make([]entry, len(list), len(list)+1)
	copy(out, list)
	return append(out, e)
}

func callbacks(list []entry) []api.Callback {
	if len(list) == 0 {
		return nil
	}
	out := make([]api.Callback, len(list))
	for i, e := range list {
		out[i] = e.cb
	}
	return out
}
