// File: core/event/typekey.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Process-wide registry assigning stable keys to event payload types and
// event groups. Keys are allocated on first use and never reused.

package event

import (
	"reflect"
	"sync"
	"sync/atomic"
	"unsafe"
)

// TypeKey identifies one payload type for the lifetime of the process.
type TypeKey uint64

// GroupKey identifies a family of payload types.
type GroupKey uint64

const (
	// NoType is never assigned to a payload type; empty values report it.
	NoType TypeKey = 0
	// NoGroup is reported by payload types that do not declare a group.
	NoGroup GroupKey = 0
)

// Grouped is implemented by payload types that belong to an event group.
// The method is called on the zero value of the type, so it must not
// depend on field values.
type Grouped interface {
	EventGroup() GroupKey
}

// typeInfo is the operation table shared by every Value holding the same
// payload type. It is built once per type and never mutated.
type typeInfo struct {
	key     TypeKey
	group   GroupKey
	name    string
	inline  bool
	destroy func(p unsafe.Pointer) // nil when the payload has no Destroy hook
}

// keyRegistry hands out monotonically increasing keys per reflect.Type.
// Lookups are lock-free; allocation takes the mutex and re-checks, so
// concurrent first use of the same type allocates exactly one key.
type keyRegistry struct {
	mu    sync.Mutex
	byTyp sync.Map // reflect.Type -> value
	next  atomic.Uint64
	count atomic.Int64
}

func (r *keyRegistry) lookup(t reflect.Type, alloc func(id uint64) any) any {
	if v, ok := r.byTyp.Load(t); ok {
		return v
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.byTyp.Load(t); ok {
		return v
	}
	v := alloc(r.next.Add(1))
	r.byTyp.Store(t, v)
	r.count.Add(1)
	return v
}

var (
	types  keyRegistry
	groups keyRegistry
)

// KeyFor returns the TypeKey of payload type T, allocating it on first call.
// Safe for concurrent use.
func KeyFor[T any]() TypeKey {
	return infoFor[T]().key
}

// GroupOf returns the group declared by payload type T, or NoGroup.
func GroupOf[T any]() GroupKey {
	return infoFor[T]().group
}

// GroupFor returns the GroupKey for the group marker type G. Any type can
// serve as a marker; an empty struct is customary.
func GroupFor[G any]() GroupKey {
	v := groups.lookup(reflect.TypeFor[G](), func(id uint64) any { return GroupKey(id) })
	return v.(GroupKey)
}

// Registered reports how many payload types have been assigned a key.
func Registered() int {
	return int(types.count.Load())
}

// infoFor resolves the operation table for T. Everything that may call
// back into user code (EventGroup) runs before the registry lock is taken.
func infoFor[T any]() *typeInfo {
	t := reflect.TypeFor[T]()
	if v, ok := types.byTyp.Load(t); ok {
		return v.(*typeInfo)
	}
	var zero T
	proto := typeInfo{
		name:   t.String(),
		inline: fitsInline(t),
	}
	if g, ok := any(zero).(Grouped); ok {
		proto.group = g.EventGroup()
	}
	if reflect.PointerTo(t).Implements(destroyerType) {
		proto.destroy = func(p unsafe.Pointer) {
			any((*T)(p)).(Destroyer).Destroy()
		}
	} else if t.Implements(destroyerType) {
		// Pointer and interface payloads carry the hook on the held value.
		proto.destroy = func(p unsafe.Pointer) {
			if d, ok := any(*(*T)(p)).(Destroyer); ok && !isNil(d) {
				d.Destroy()
			}
		}
	}
	v := types.lookup(t, func(id uint64) any {
		info := proto
		info.key = TypeKey(id)
		return &info
	})
	return v.(*typeInfo)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
