package prompts

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the override templates when files in the override directory
// change, until ctx is done. Events are debounced. Watch returns once the
// watcher is running; a nil error with no override dir means nothing to do.
func (e *Engine) Watch(ctx context.Context, debounce time.Duration) error {
	if e.dir == "" {
		return nil
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(e.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", e.dir, err)
	}

	var (
		mu      sync.Mutex
		pending *time.Timer
	)
	reload := func() {
		if err := e.Reload(); err != nil {
			e.log.Warn("prompt reload failed", "dir", e.dir, "err", err)
			return
		}
		e.log.Info("prompts reloaded", "dir", e.dir)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				mu.Lock()
				if pending != nil {
					pending.Stop()
				}
				mu.Unlock()
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Ext(event.Name) != ext {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				mu.Lock()
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(debounce, reload)
				mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				e.log.Warn("prompt watcher error", "err", err)
			}
		}
	}()
	return nil
}
