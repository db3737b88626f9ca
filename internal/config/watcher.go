package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/monitoring"
)

// Watcher reloads a tuning file whenever it changes on disk and hands the
// validated result to OnChange. Invalid edits are logged and ignored, so the
// last good configuration stays in effect.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	OnChange func(*TuningConfig)
}

// NewWatcher watches the directory holding path so that editors which
// replace the file by rename are still observed.
func NewWatcher(path string, onChange func(*TuningConfig)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	clean := filepath.Clean(path)
	if err := fw.Add(filepath.Dir(clean)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(clean), err)
	}
	return &Watcher{path: clean, watcher: fw, OnChange: onChange}, nil
}

// Run processes file events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			monitoring.Logf("config watcher: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadTuningConfig(w.path)
	if err != nil {
		monitoring.Logf("config reload rejected: %v", err)
		return
	}
	monitoring.Logf("config reloaded from %s", w.path)
	if w.OnChange != nil {
		w.OnChange(cfg)
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}
