// File: sources/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package sources attaches operating-system event producers to a queue.
//
// Each AddXxxSource function registers exactly one native descriptor with
// the queue and returns what the caller needs to remove it again. Payloads
// belong to one of three groups: SystemGroup (signals, timers),
// FileSystemGroup (watch notifications) and NetworkGroup (listeners and
// sockets), so a single OnGroup binding can observe a whole family.
package sources
