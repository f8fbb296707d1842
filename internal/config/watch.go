package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 250 * time.Millisecond

// Watcher reloads the config file when it changes and invokes the
// registered callback with the new configuration.
type Watcher struct {
	path     string
	onChange func(Config)
	logger   *zap.Logger
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string, onChange func(Config), logger *zap.Logger) *Watcher {
	return &Watcher{path: path, onChange: onChange, logger: logger}
}

// Run watches until ctx is cancelled. The parent directory is watched
// rather than the file itself so editor rename-over-save is caught.
func (w *Watcher) Run(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	target := filepath.Clean(w.path)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return err
	}

	// Debounce so partial writes are not loaded.
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reload := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, func() {
			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Warn("config reload failed, keeping previous configuration",
					zap.Error(err))
				return
			}
			w.logger.Info("configuration reloaded", zap.String("path", w.path))
			w.onChange(cfg)
		})
	}

	for {
		select {
		case <-ctx.Done():
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timerMu.Unlock()
			return nil
		case ev := <-fw.Events:
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				reload()
			}
		case err := <-fw.Errors:
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}
