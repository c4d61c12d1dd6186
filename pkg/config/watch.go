package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/geoguard/geoguard/pkg/observability"
)

// WatchLogLevel re-reads the YAML overlay whenever it changes and applies its
// log level to logger. Other settings need a restart. It blocks until ctx is
// done and returns nil when no overlay file is in use.
func WatchLogLevel(ctx context.Context, cfg *Config, logger *observability.Logger) error {
	if cfg.File == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	// editors replace the file on save, so watch the directory
	if err := watcher.Add(filepath.Dir(cfg.File)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}
	target := filepath.Clean(cfg.File)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			reloaded, err := load(cfg.File)
			if err != nil {
				logger.WithError(err).Warn("ignoring unreadable config change")
				continue
			}
			level := reloaded.LogLevel()
			logger.SetLevel(level)
			logger.WithField("log_level", level.String()).Info("log level reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("config watcher error")
		}
	}
}
