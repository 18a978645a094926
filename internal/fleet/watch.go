package fleet

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch invalidates cache whenever a .json file under dirs is created,
// written, removed or renamed. It returns once the watcher is set up; the
// watch loop runs until ctx is done.
func Watch(ctx context.Context, cache *Cache, logger *zap.Logger, dirs ...string) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	added := 0
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := w.Add(dir); err != nil {
			logger.Warn("cannot watch data dir", zap.String("dir", dir), zap.Error(err))
			continue
		}
		added++
	}
	if added == 0 {
		w.Close()
		logger.Warn("fleet data watcher disabled; no watchable dirs")
		return nil
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !isDataChange(event) {
					continue
				}
				logger.Debug("fleet data changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
				cache.Invalidate()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("fleet data watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

func isDataChange(event fsnotify.Event) bool {
	if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
