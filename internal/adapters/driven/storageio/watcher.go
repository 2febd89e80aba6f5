package storageio

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

type Watcher interface {
	Watch(ctx context.Context) error
}

// fsnotifyWatcher calls reloadFunc whenever a watched path changes. It always
// watches a directory; match decides which events inside it are relevant.
type fsnotifyWatcher struct {
	watcher    *fsnotify.Watcher
	dir        string
	match      func(name string) bool
	reloadFunc func() error
	logger     *slog.Logger
}

// NewFileWatcher watches a single file. The parent directory is what gets
// watched, so the file may be created or atomically replaced later.
func NewFileWatcher(path string, reloadFunc func() error, logger *slog.Logger) (Watcher, error) {
	target := filepath.Clean(path)

	return newFsnotifyWatcher(filepath.Dir(target), func(name string) bool {
		return filepath.Clean(name) == target
	}, reloadFunc, logger)
}

// NewDirWatcher watches every visible entry of dir.
func NewDirWatcher(dir string, reloadFunc func() error, logger *slog.Logger) (Watcher, error) {
	return newFsnotifyWatcher(filepath.Clean(dir), func(name string) bool {
		return !IsHidden(filepath.Base(name))
	}, reloadFunc, logger)
}

func newFsnotifyWatcher(dir string, match func(string) bool, reloadFunc func() error, logger *slog.Logger) (*fsnotifyWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &fsnotifyWatcher{
		watcher:    fsWatcher,
		dir:        dir,
		match:      match,
		reloadFunc: reloadFunc,
		logger:     logger,
	}, nil
}

// Watch starts watching and returns once the watch is registered. Events are
// handled on a background goroutine until ctx is cancelled.
func (w *fsnotifyWatcher) Watch(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		w.watcher.Close()
		return fmt.Errorf("failed to start watching %s: %w", w.dir, err)
	}

	go func() {
		defer w.watcher.Close()

		for {
			select {
			case <-ctx.Done():
				w.logger.Debug("stopping file watcher", "dir", w.dir)
				return

			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}

				// only ops that change data
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
					continue
				}
				if !w.match(event.Name) {
					continue
				}

				w.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
				if err := w.reloadFunc(); err != nil {
					w.logger.Warn("reload after change failed", "path", event.Name, "error", err)
				}

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error("file watcher error", "error", err)
			}
		}
	}()

	w.logger.Info("watching for changes", "dir", w.dir)
	return nil
}
