package contexts

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// ErrWatchUnsupported is returned by Watch when the backend has no directory.
var ErrWatchUnsupported = errors.New("backend does not support watching")

// Watch evicts cached contexts whose record files are written, replaced or
// removed on disk, so edits made by other processes are picked up by the
// next Get. The watcher is running when Watch returns and stops when ctx
// is done.
func (s *Store) Watch(ctx context.Context) error {
	wb, ok := s.backend.(Watchable)
	if !ok {
		return ErrWatchUnsupported
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(wb.Dir()); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", wb.Dir(), err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if id := idFromPath(ev.Name); id != "" {
					s.Invalidate(id)
					s.logger.Debug("context changed on disk", "context", id, "op", ev.Op.String())
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("context watcher error", "err", err)
			}
		}
	}()
	return nil
}
