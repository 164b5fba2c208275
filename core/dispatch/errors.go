// File: core/dispatch/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package dispatch

import "strings"

// Errors collects the failures of callbacks invoked for one or more events.
// errors.Is and errors.As look through every member.
type Errors struct {
	Event string
	Errs  []error
}

func (e *Errors) Error() string {
	sb := strings.Builder{}
	sb.WriteString("dispatch ")
	sb.WriteString(e.Event)
	sb.WriteString(": [")
	for i, err := range e.Errs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(err.Error())
	}
	sb.WriteString("]")
	return sb.String()
}

// Unwrap returns the member errors.
func (e *Errors) Unwrap() []error { return e.Errs }

// Merge folds err into acc, flattening *Errors on either side. Either
// may be nil.
func Merge(acc, err error) error {
	if err == nil {
		return acc
	}
	if acc == nil {
		return err
	}
	out := &Errors{Event: "events"}
	out.Errs = appendFlat(out.Errs, acc)
	out.Errs = appendFlat(out.Errs, err)
	return out
}

func appendFlat(list []error, err error) []error {
	if e, ok := err.(*Errors); ok {
		return append(list, e.Errs...)
	}
	return append(list, err)
}
