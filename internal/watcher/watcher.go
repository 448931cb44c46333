// Package watcher observes the user-store file and triggers a directory
// reload on every modification.
package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rikardbq/serf/internal/logger"
)

var customLog = logger.NewLogger()

// debounce coalesces the write bursts SQLite produces on a single commit.
const debounce = 100 * time.Millisecond

// Watch blocks until ctx is done, invoking onChange after each observed
// modification of path. The parent directory is watched so the file may be
// replaced atomically without losing the watch.
func Watch(ctx context.Context, path string, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(debounce)
			}
		case <-fire:
			timer = nil
			customLog.Debugf("Watcher: Change detected on %s", path)
			onChange()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			customLog.Warnf("Watcher: %v", err)
		}
	}
}
