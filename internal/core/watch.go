package core

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ConfigWatcher watches the config file and triggers a hot reload when it
// changes. Editors often replace files via rename, so the parent directory
// is watched and events are filtered by filename.
type ConfigWatcher struct {
	path    string
	logger  zerolog.Logger
	reload  func() ([]string, error)
	watcher *fsnotify.Watcher

	// debounce collapses bursts of write events into a single reload
	debounce time.Duration
}

// NewConfigWatcher creates a watcher for the given config file. The reload
// callback is invoked after the file settles.
func NewConfigWatcher(path string, logger zerolog.Logger, reload func() ([]string, error)) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	return &ConfigWatcher{
		path:     path,
		logger:   logger.With().Str("component", "config_watcher").Logger(),
		reload:   reload,
		watcher:  w,
		debounce: 500 * time.Millisecond,
	}, nil
}

// Start runs the watch loop until the context is cancelled.
func (cw *ConfigWatcher) Start(ctx context.Context) {
	go cw.loop(ctx)
	cw.logger.Info().Str("path", cw.path).Msg("config watcher started")
}

func (cw *ConfigWatcher) loop(ctx context.Context) {
	defer cw.watcher.Close()

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(cw.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(cw.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			changes, err := cw.reload()
			if err != nil {
				cw.logger.Error().Err(err).Msg("config reload failed")
				continue
			}
			if len(changes) > 0 {
				cw.logger.Info().Strs("changes", changes).Msg("config reloaded from file change")
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}
