package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Reloader re-reads a document from disk.
type Reloader interface {
	Reload() error
}

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watcher calls Reload on targets whose files change.
type Watcher struct {
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration
	targets  map[string]Reloader
}

// NewWatcher watches the directory of each path so editors that replace files
// are still seen.
func NewWatcher(logger *zap.Logger, debounce time.Duration, targets map[string]Reloader) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		logger:   logger,
		watcher:  fw,
		debounce: debounce,
		targets:  make(map[string]Reloader, len(targets)),
	}

	dirs := make(map[string]struct{})
	for path, target := range targets {
		if path == "" || target == nil {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("resolve %s: %w", path, err)
		}
		w.targets[abs] = target
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			if _, watched := w.targets[abs]; !watched {
				continue
			}
			pending[abs] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))

		case <-timer.C:
			for path := range pending {
				if err := w.targets[path].Reload(); err != nil {
					w.logger.Warn("reload failed, keeping previous document",
						zap.String("path", path), zap.Error(err))
					continue
				}
				w.logger.Info("document reloaded", zap.String("path", path))
			}
			clear(pending)
		}
	}
}
