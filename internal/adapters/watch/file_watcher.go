// Package watch reports changes to a single file that is replaced by atomic
// rename, which is how the recap store writes it.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 200 * time.Millisecond

type FileWatcher struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger
}

func NewFileWatcher(path string, debounce time.Duration, logger *zap.Logger) *FileWatcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FileWatcher{path: filepath.Clean(path), debounce: debounce, logger: logger}
}

// Run calls onChange after each burst of changes to the file and returns when
// ctx is done. The parent directory is watched because a rename replaces the
// inode the file had.
func (w *FileWatcher) Run(ctx context.Context, onChange func()) error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create watch directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Debug("watching file", zap.String("path", w.path))

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", zap.String("path", w.path), zap.Error(err))
		case <-timer.C:
			onChange()
		}
	}
}
