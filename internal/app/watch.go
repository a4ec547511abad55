package app

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"tab-overlay/server/internal/telemetry"
)

// reloadDebounce coalesces the bursts of events editors produce for a single
// save.
const reloadDebounce = 200 * time.Millisecond

// watchConfig calls onChange after path was written, created or replaced. The
// parent directory is watched so atomic renames are seen. A missing directory
// disables reloading without failing the process.
func watchConfig(ctx context.Context, path string, onChange func(), logger telemetry.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Printf("config reload disabled: %v", err)
		return nil
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		logger.Printf("config reload disabled: %v", err)
		return nil
	}

	var debounce *time.Timer
	var fire <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(reloadDebounce)
			} else {
				debounce.Reset(reloadDebounce)
			}
			fire = debounce.C
		case <-fire:
			fire = nil
			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Printf("config watcher: %v", err)
		}
	}
}
