// File: sources/groups.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sources

import "github.com/momentics/hioload-events/core/event"

// SystemGroup marks signal and timer payloads.
type SystemGroup struct{}

// FileSystemGroup marks filesystem watch payloads.
type FileSystemGroup struct{}

// NetworkGroup marks listener and socket payloads.
type NetworkGroup struct{}

func systemGroup() event.GroupKey     { return event.GroupFor[SystemGroup]() }
func fileSystemGroup() event.GroupKey { return event.GroupFor[FileSystemGroup]() }
func networkGroup() event.GroupKey    { return event.GroupFor[NetworkGroup]() }
