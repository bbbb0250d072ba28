package policy

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher reloads the policy store when its file changes on disk. It
// watches the containing directory rather than the file itself so that
// atomic rename-based writes (the common editor and configmap pattern)
// are still observed.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	log     *logrus.Logger
	done    chan struct{}
}

// NewWatcher creates a watcher for the store's policy file.
func NewWatcher(store *Store, log *logrus.Logger) (*Watcher, error) {
	if store.Path() == "" {
		return nil, fmt.Errorf("policy store has no file to watch")
	}
	if log == nil {
		log = logrus.New()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(store.Path())); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch policy directory: %w", err)
	}
	return &Watcher{
		store:   store,
		watcher: fsw,
		log:     log,
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	target := filepath.Clean(w.store.Path())
	go func() {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				w.log.WithField("event", event.Op.String()).Debug("Policy file changed")
				w.store.Reload()
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.WithError(err).Error("Policy watcher error")
			case <-w.done:
				return
			}
		}
	}()
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
