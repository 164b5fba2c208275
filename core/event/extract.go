// File: core/event/extract.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package event

import (
	"fmt"
	"reflect"
	"unsafe"
)

// ContractViolation is the panic value raised when a Value is used against
// its contract, such as extracting the wrong payload type.
type ContractViolation struct {
	Op   string
	Want string
	Have string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("event: contract violation in %s: want %s, have %s", e.Op, e.Want, e.Have)
}

// Extract returns a pointer to the payload held by v. It panics with a
// *ContractViolation when v is empty or holds a payload of another type.
// The pointer is valid only while v owns the payload.
func Extract[T any](v *Value) *T {
	p, ok := TryExtract[T](v)
	if !ok {
		panic(&ContractViolation{
			Op:   "extract",
			Want: reflect.TypeFor[T]().String(),
			Have: v.TypeName(),
		})
	}
	return p
}

// TryExtract is the non-panicking form of Extract.
func TryExtract[T any](v *Value) (*T, bool) {
	if !v.Valid() || v.info.key != KeyFor[T]() {
		return nil, false
	}
	return (*T)(unsafe.Pointer(v.payload())), true
}

// Is reports whether v holds a payload of type T.
func Is[T any](v *Value) bool {
	return v.Valid() && v.info.key == KeyFor[T]()
}

// Empty is the sentinel payload a translator returns when a readiness
// notification produced nothing worth dispatching.
type Empty struct{}

// NewEmpty returns a Value holding the sentinel.
func NewEmpty() *Value {
	return New(Empty{})
}

// IsEmpty reports whether v carries no dispatchable event: nil, moved-from,
// destroyed, or holding the sentinel.
func IsEmpty(v *Value) bool {
	return !v.Valid() || v.info.key == KeyFor[Empty]()
}
