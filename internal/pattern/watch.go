package pattern

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/toolgate-ai/toolgate/internal/event"
	"github.com/toolgate-ai/toolgate/internal/logging"
)

// Watcher reloads the store when another process rewrites the file. Saves
// are atomic renames, so the interesting events are create and rename on
// the store path.
type Watcher struct {
	watcher *fsnotify.Watcher
	store   *Store
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	mu      sync.Mutex
}

// NewWatcher creates a watcher for the store. The containing directory is
// watched rather than the file itself since renames replace the inode.
func NewWatcher(store *Store) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := w.Add(filepath.Dir(store.path)); err != nil {
		w.Close()
		return nil, err
	}

	return &Watcher{
		watcher: w,
		store:   store,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start begins watching for external store changes.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run()
}

func (w *Watcher) run() {
	defer close(w.doneCh)
	log := logging.Component("store-watcher")

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != w.store.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) reload() {
	if err := w.store.Reload(); err != nil {
		logging.Error().Err(err).Msg("failed to reload pattern store")
		return
	}

	event.Publish(event.Event{
		Type: event.StoreUpdated,
		Data: event.StoreUpdatedData{
			Path:  w.store.path,
			Rules: w.store.Len(),
		},
	})
}

// Stop stops the watcher and waits for the run loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}

	if started {
		<-w.doneCh
	}

	return w.watcher.Close()
}
