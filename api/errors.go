// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-events.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrNotSupported    = fmt.Errorf("operation not supported")
	ErrAlreadyExists   = fmt.Errorf("resource already exists")
	ErrNotFound        = fmt.Errorf("resource not found")
	ErrQueueClosed     = fmt.Errorf("event queue is closed")
	ErrWaitInProgress  = fmt.Errorf("event queue is already waiting")
	ErrSystem          = fmt.Errorf("system error")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeNotSupported
	ErrCodeAlreadyExists
	ErrCodeNotFound
	ErrCodeClosed
	ErrCodeBusy
	ErrCodeSystem
)

var codeSentinels = map[ErrorCode]error{
	ErrCodeInvalidArgument: ErrInvalidArgument,
	ErrCodeNotSupported:    ErrNotSupported,
	ErrCodeAlreadyExists:   ErrAlreadyExists,
	ErrCodeNotFound:        ErrNotFound,
	ErrCodeClosed:          ErrQueueClosed,
	ErrCodeBusy:            ErrWaitInProgress,
	ErrCodeSystem:          ErrSystem,
}

// Error represents a structured error with code and context.
// Err, when set, is the underlying cause (usually a syscall.Errno).
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel error that corresponds to the code, so
// errors.Is(err, ErrAlreadyExists) holds for a coded error.
func (e *Error) Is(target error) bool {
	s, ok := codeSentinels[e.Code]
	return ok && s == target
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// SystemError wraps an OS-level failure of op.
func SystemError(op string, err error) *Error {
	return NewError(ErrCodeSystem, op).Wrap(err)
}

// Wrap records err as the underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf extracts the ErrorCode carried by err, or ErrCodeOK for nil and
// ErrCodeSystem for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	for code, s := range codeSentinels {
		if errors.Is(err, s) {
			return code
		}
	}
	return ErrCodeSystem
}
