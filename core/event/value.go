// File: core/event/value.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Value is a type-erased, move-only container for exactly one event payload.
// Small pointer-free payloads live in an inline buffer of three machine
// words; everything else is allocated on the heap. Either way the payload is
// released exactly once, by Destroy on the Value that owns it last.

package event

import (
	"fmt"
	"reflect"
	"sync/atomic"
	"unsafe"
)

const inlineWords = 3

// InlineSize is the capacity of the in-place payload buffer in bytes.
const InlineSize = inlineWords * int(unsafe.Sizeof(uintptr(0)))

// Destroyer is implemented by payloads that hold resources of their own.
// Destroy is called exactly once, when the owning Value is destroyed.
type Destroyer interface {
	Destroy()
}

var destroyerType = reflect.TypeFor[Destroyer]()

// noCopy makes go vet's copylocks check flag accidental Value copies.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Value owns one payload or nothing. The zero Value is empty.
// Values must be passed by pointer; ownership moves with Move/MoveTo.
type Value struct {
	_      noCopy
	info   *typeInfo
	heap   unsafe.Pointer
	inline [inlineWords]uintptr
}

var (
	heapAllocs   atomic.Uint64
	heapReleases atomic.Uint64
)

// HeapStats reports how many payloads were placed on the heap and how many
// of those have been released since process start.
func HeapStats() (allocs, releases uint64) {
	return heapAllocs.Load(), heapReleases.Load()
}

// New wraps payload into a fresh Value stamped with KeyFor[T]().
func New[T any](payload T) *Value {
	info := infoFor[T]()
	v := &Value{info: info}
	if info.inline {
		*(*T)(unsafe.Pointer(&v.inline)) = payload
		return v
	}
	p := new(T)
	*p = payload
	v.heap = unsafe.Pointer(p)
	heapAllocs.Add(1)
	return v
}

// Type returns the payload's TypeKey, or NoType when v holds nothing.
func (v *Value) Type() TypeKey {
	if v == nil || v.info == nil {
		return NoType
	}
	return v.info.key
}

// Group returns the payload's GroupKey, or NoGroup.
func (v *Value) Group() GroupKey {
	if v == nil || v.info == nil {
		return NoGroup
	}
	return v.info.group
}

// TypeName returns the Go type name of the payload, for diagnostics.
func (v *Value) TypeName() string {
	if v == nil || v.info == nil {
		return "<empty>"
	}
	return v.info.name
}

// Valid reports whether v currently owns a payload.
func (v *Value) Valid() bool {
	return v != nil && v.info != nil
}

// Inline reports whether the payload is stored in place.
func (v *Value) Inline() bool {
	return v.Valid() && v.info.inline
}

func (v *Value) payload() unsafe.Pointer {
	if v.info.inline {
		return unsafe.Pointer(&v.inline)
	}
	return v.heap
}

// Destroy releases the payload. Calling it on an empty Value does nothing.
func (v *Value) Destroy() {
	if !v.Valid() {
		return
	}
	if v.info.destroy != nil {
		v.info.destroy(v.payload())
	}
	if !v.info.inline {
		heapReleases.Add(1)
	}
	v.clear()
}

// Move transfers the payload into a new Value and leaves v empty.
func (v *Value) Move() *Value {
	dst := &Value{}
	v.MoveTo(dst)
	return dst
}

// MoveTo destroys whatever dst holds and transfers v's payload into it,
// leaving v empty. Moving a Value onto itself does nothing.
func (v *Value) MoveTo(dst *Value) {
	if dst == nil || dst == v {
		return
	}
	dst.Destroy()
	if !v.Valid() {
		return
	}
	dst.info = v.info
	if v.info.inline {
		dst.inline = v.inline
	} else {
		dst.heap = v.heap
	}
	v.clear()
}

func (v *Value) clear() {
	v.info = nil
	v.heap = nil
	v.inline = [inlineWords]uintptr{}
}

// String implements fmt.Stringer.
func (v *Value) String() string {
	if !v.Valid() {
		return "event(<empty>)"
	}
	return fmt.Sprintf("event(%s type=%d group=%d)", v.info.name, v.info.key, v.info.group)
}

// fitsInline decides the storage class of t. Only types without Go
// pointers may live in the uintptr buffer; the collector does not scan it.
func fitsInline(t reflect.Type) bool {
	return t.Size() <= uintptr(InlineSize) &&
		uintptr(t.Align()) <= unsafe.Alignof(uintptr(0)) &&
		!hasPointers(t)
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
