package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	applogger "CropCast/pkg/logger"

	"github.com/fsnotify/fsnotify"
)

// Reloader is what the watcher triggers.
type Reloader interface {
	Reload(ctx context.Context) (LoadResult, error)
}

// Watcher reloads the registry when artifacts in the model directory change.
// Bursts of events within the debounce window cause one reload.
type Watcher struct {
	target   Reloader
	dir      string
	match    func(name string) bool
	debounce time.Duration
	logger   *applogger.Logger
	fw       *fsnotify.Watcher
}

type WatcherOption func(*Watcher)

func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

func WithWatchLogger(l *applogger.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithFilter limits reloads to files whose base name passes match.
func WithFilter(match func(name string) bool) WatcherOption {
	return func(w *Watcher) { w.match = match }
}

func NewWatcher(target Reloader, dir string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		target:   target,
		dir:      dir,
		match:    func(string) bool { return true },
		debounce: 500 * time.Millisecond,
		logger:   applogger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	w.fw = fw
	return w, nil
}

// Run blocks until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("model dir watch error", applogger.Error(err))
		case <-fire:
			fire = nil
			if _, err := w.target.Reload(ctx); err != nil {
				w.logger.Error("model reload failed", applogger.Error(err))
			}
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return w.match(filepath.Base(ev.Name))
}

func (w *Watcher) Close() error {
	return w.fw.Close()
}
