package shader

import (
	"github.com/fsnotify/fsnotify"

	"github.com/nullrend/vkfg/engine/core"
)

// Watcher is an opt-in convenience around fsnotify that forwards file-write
// events into a Store's NotifyFileChanged. Shader hot-reload's file-watching
// is an external collaborator per this package's scope; Watcher exists only
// to give that collaborator a concrete, ready-to-use home rather than
// leaving it purely conceptual.
type Watcher struct {
	fsw   *fsnotify.Watcher
	store *Store
	done  chan struct{}
}

// NewWatcher creates a fsnotify-backed watcher that reports changes to
// store. Callers add paths with Add and must call Close when done.
func NewWatcher(store *Store) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{fsw: fsw, store: store, done: make(chan struct{})}
	go w.run()
	return w, nil
}

// Add registers path for change notification.
func (w *Watcher) Add(path string) error {
	return w.fsw.Add(path)
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.store.NotifyFileChanged(event.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			core.LogWarn("shader watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
