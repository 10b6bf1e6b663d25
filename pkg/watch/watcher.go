// Package watch reports edits to robot description templates so the processes
// that expand them can be restarted.
package watch

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/core-tools/hsu-simlaunch/pkg/errors"
	"github.com/core-tools/hsu-simlaunch/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

const flagsWorthReloadingFor = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// DefaultExtensions are the template and robot description file types
var DefaultExtensions = []string{".xacro", ".urdf"}

// ChangeHandler receives the files changed during one debounce interval, sorted
type ChangeHandler func(ctx context.Context, changed []string)

type Config struct {
	// Directories to watch, not recursive
	Directories []string
	// Quiet period after the last change before the handler runs
	Debounce time.Duration
	// File extensions to react to, DefaultExtensions when empty
	Extensions []string
}

type Watcher struct {
	config  Config
	watcher *fsnotify.Watcher
	handler ChangeHandler
	logger  logging.Logger
}

func NewWatcher(config Config, handler ChangeHandler, logger logging.Logger) (*Watcher, error) {
	if len(config.Directories) == 0 {
		return nil, errors.NewValidationError("at least one directory must be watched", nil)
	}
	if handler == nil {
		return nil, errors.NewValidationError("change handler cannot be nil", nil)
	}
	if config.Debounce < 0 {
		return nil, errors.NewValidationError("debounce cannot be negative", nil)
	}
	if len(config.Extensions) == 0 {
		config.Extensions = DefaultExtensions
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.NewIOError("failed to create file watcher", err)
	}

	for _, dir := range config.Directories {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, errors.NewIOError("failed to watch directory", err).WithContext("directory", dir)
		}
	}

	return &Watcher{
		config:  config,
		watcher: watcher,
		handler: handler,
		logger:  logger,
	}, nil
}

// Run delivers debounced changes to the handler until ctx is done or the
// watcher is closed. Changes still pending at that point are dropped.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	w.logger.Infof("Watching %s for changes to %s", strings.Join(w.config.Directories, ", "), strings.Join(w.config.Extensions, ", "))

	pending := map[string]bool{}
	timer := time.NewTimer(time.Hour)
	stopTimer(timer)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&flagsWorthReloadingFor == 0 || !w.matches(event.Name) {
				continue
			}
			w.logger.Debugf("File event %s on %s", event.Op, event.Name)
			pending[event.Name] = true
			stopTimer(timer)
			timer.Reset(w.config.Debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnf("File watcher error: %v", err)

		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for name := range pending {
				changed = append(changed, name)
			}
			sort.Strings(changed)
			pending = map[string]bool{}

			w.logger.Infof("Detected changes in %s", strings.Join(changed, ", "))
			w.handler(ctx, changed)
		}
	}
}

// Close stops Run
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) matches(name string) bool {
	ext := filepath.Ext(name)
	for _, e := range w.config.Extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func stopTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
