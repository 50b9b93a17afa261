package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/docindex/internal/store"
)

// RestoreWatcher watches a store directory and calls InvalidateIfChanged
// after the index or metadata file changes.
type RestoreWatcher struct {
	dir       string
	target    Invalidator
	opts      Options
	logger    *slog.Logger
	fsw       *fsnotify.Watcher
	debouncer *Debouncer

	mu            sync.Mutex
	invalidations int
}

// NewRestoreWatcher prepares a watcher on dir. The directory is created if it
// does not exist yet. fsnotify setup failure switches to polling.
func NewRestoreWatcher(dir string, target Invalidator, opts Options, logger *slog.Logger) (*RestoreWatcher, error) {
	if target == nil {
		return nil, errors.New("watcher: invalidator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	opts = opts.WithDefaults()

	w := &RestoreWatcher{
		dir:    dir,
		target: target,
		opts:   opts,
		logger: logger,
	}
	if opts.ForcePolling {
		return w, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		err = fsw.Add(dir)
		if err != nil {
			_ = fsw.Close()
		}
	}
	if err != nil {
		logger.Warn("watch_fsnotify_unavailable",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
			slog.Duration("poll_interval", opts.PollInterval))
		return w, nil
	}
	w.fsw = fsw
	w.debouncer = NewDebouncer(opts.Debounce, logger)
	return w, nil
}

// Mode returns "fsnotify" or "polling".
func (w *RestoreWatcher) Mode() string {
	if w.fsw != nil {
		return "fsnotify"
	}
	return "polling"
}

// Invalidations returns how many times the cache was dropped.
func (w *RestoreWatcher) Invalidations() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.invalidations
}

// Run blocks until ctx is done.
func (w *RestoreWatcher) Run(ctx context.Context) error {
	w.logger.Info("watch_started", slog.String("dir", w.dir), slog.String("mode", w.Mode()))
	defer w.logger.Info("watch_stopped", slog.String("dir", w.dir))

	if w.fsw == nil {
		return w.poll(ctx)
	}
	defer w.debouncer.Stop()
	defer func() { _ = w.fsw.Close() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if fe, ok := w.convert(ev); ok {
				w.debouncer.Add(fe)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch_error", slog.String("error", err.Error()))
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return nil
			}
			w.check(batch)
		}
	}
}

func (w *RestoreWatcher) poll(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.check(nil)
		}
	}
}

// convert keeps events on the store's data files. Lock and temp files are
// ignored; an atomic replace shows up as a create of the final name.
func (w *RestoreWatcher) convert(ev fsnotify.Event) (FileEvent, bool) {
	name := filepath.Base(ev.Name)
	if name != store.IndexFileName && name != store.MetadataFileName {
		return FileEvent{}, false
	}

	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove):
		op = OpDelete
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		return FileEvent{}, false
	}
	return FileEvent{Name: name, Operation: op, Timestamp: time.Now()}, true
}

func (w *RestoreWatcher) check(batch []FileEvent) {
	if !w.target.InvalidateIfChanged() {
		return
	}
	w.mu.Lock()
	w.invalidations++
	w.mu.Unlock()

	attrs := []any{slog.String("dir", w.dir)}
	if len(batch) > 0 {
		names := make([]string, len(batch))
		for i, ev := range batch {
			names[i] = ev.Name + ":" + ev.Operation.String()
		}
		attrs = append(attrs, slog.Any("events", names))
	}
	w.logger.Info("store_change_detected", attrs...)
}
