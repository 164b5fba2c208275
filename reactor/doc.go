// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness multiplexer and self-notification
// primitives the event queue blocks on: epoll and eventfd on Linux, a stub
// reporting api.ErrNotSupported elsewhere.
package reactor
