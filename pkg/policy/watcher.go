package policy

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher hot-reloads the policy file into a Store. A failed reload keeps the
// previous snapshot active; the gateway never serves without a valid policy
// once one has loaded.
type Watcher struct {
	path     string
	store    *Store
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	cancel   context.CancelFunc
	onReload func(ok bool)
}

// OnReload registers a callback invoked after every reload attempt with
// its outcome. Must be called before events start flowing, i.e. right
// after NewWatcher.
func (w *Watcher) OnReload(fn func(ok bool)) { w.onReload = fn }

// NewWatcher starts watching the policy file's directory. Editors and
// configmap mounts replace files rather than writing in place, so the watch
// is on the directory and events are filtered to the configured path.
func NewWatcher(path string, store *Store, logger zerolog.Logger) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve policy path: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("watch policy directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		path:    absPath,
		store:   store,
		watcher: fsWatcher,
		logger:  logger,
		cancel:  cancel,
	}

	go w.watchLoop(ctx)

	return w, nil
}

// Close stops the watcher and releases its resources.
func (w *Watcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	var debounceTimer *time.Timer
	debounceDuration := 100 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Chmod) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, w.reload)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("policy watcher error")
		}
	}
}

func (w *Watcher) reload() {
	snap, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error().Err(err).Str("path", w.path).Msg("policy reload failed, keeping previous snapshot")
		if w.onReload != nil {
			w.onReload(false)
		}
		return
	}
	w.store.Replace(snap)
	w.logger.Info().Str("path", w.path).Str("policy_version", snap.Version()).Msg("policy reloaded")
	if w.onReload != nil {
		w.onReload(true)
	}
}
