// File: sources/watch_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sources

import (
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/momentics/hioload-events/api"
	"github.com/momentics/hioload-events/core/event"
	"github.com/momentics/hioload-events/core/queue"
	"github.com/momentics/hioload-events/internal/log"
)

// AddWatchSource watches paths and reports their changes to q. Directories
// report changes to their direct children.
func AddWatchSource(q *queue.Queue, paths ...string) (*Watch, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, api.SystemError("fsnotify", err)
	}
	w := &Watch{w: fw}
	for _, p := range paths {
		if err := w.Add(p); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}

	b, err := newBridge()
	if err != nil {
		_ = fw.Close()
		return nil, err
	}
	w.fd = b.fd

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				b.push(event.New(FileChange{Path: ev.Name, Op: ev.Op}))
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				b.push(event.New(WatchError{Err: err}))
			}
		}
	}()

	destroy := func(int) {
		_ = fw.Close()
		wg.Wait()
		b.close()
	}
	if err := q.AddNativeSource(b.fd, b.pop, destroy); err != nil {
		destroy(b.fd)
		return nil, err
	}

	lg := log.WithComponent("sources")
	lg.Debug().
		Str("event", "sources.watch_added").
		Int("fd", b.fd).
		Strs("paths", paths).
		Msg("watch source added")
	return w, nil
}
