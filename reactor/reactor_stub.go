//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import "github.com/momentics/hioload-events/api"

// NewMultiplexer returns an error for unsupported platforms.
func NewMultiplexer(int) (Multiplexer, error) {
	return nil, api.NewError(api.ErrCodeNotSupported, "reactor: this platform is not supported")
}

// NewNotifier returns an error for unsupported platforms.
func NewNotifier() (Notifier, error) {
	return nil, api.NewError(api.ErrCodeNotSupported, "reactor: this platform is not supported")
}
