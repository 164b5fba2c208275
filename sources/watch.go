// File: sources/watch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sources

import (
	"github.com/fsnotify/fsnotify"

	"github.com/momentics/hioload-events/api"
)

// Watch is a filesystem watch source. Paths can be added and removed while
// it is registered.
type Watch struct {
	fd int
	w  *fsnotify.Watcher
}

// FD returns the descriptor registered with the queue.
func (w *Watch) FD() int { return w.fd }

// Add starts watching path.
func (w *Watch) Add(path string) error {
	if err := w.w.Add(path); err != nil {
		return api.NewError(api.ErrCodeSystem, "watch path").WithContext("path", path).Wrap(err)
	}
	return nil
}

// Remove stops watching path.
func (w *Watch) Remove(path string) error {
	if err := w.w.Remove(path); err != nil {
		return api.NewError(api.ErrCodeNotFound, "unwatch path").WithContext("path", path).Wrap(err)
	}
	return nil
}

// Paths lists the watched paths.
func (w *Watch) Paths() []string { return w.w.WatchList() }
