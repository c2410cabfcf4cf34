package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Reload is one accepted configuration change.
type Reload struct {
	Old  *Config
	New  *Config
	Diff ConfigDiff
}

// Watcher polls a config file and hands every edit that changes the
// effective configuration to an apply callback. Edits that fail to parse or
// validate are rejected: the running config stays in place and the failure
// is kept in [Watcher.Err] until a later edit loads cleanly.
type Watcher struct {
	path     string
	interval time.Duration
	apply    func(Reload)
	log      *slog.Logger

	mu      sync.Mutex
	current *Config
	stamp   fileStamp
	lastErr error
}

// fileStamp is the cheap identity of a file revision.
type fileStamp struct {
	mod  time.Time
	size int64
}

func stampOf(info os.FileInfo) fileStamp {
	return fileStamp{mod: info.ModTime(), size: info.Size()}
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger sets the logger for reload events. Default: slog.Default().
func WithLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.log = l }
}

// NewWatcher loads path and returns a Watcher holding it as the current
// config. Polling starts with [Watcher.Run]. apply may be nil.
func NewWatcher(path string, apply func(Reload), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		apply:    apply,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = cfg
	w.stamp = stampOf(info)
	return w, nil
}

// Current returns the config in effect.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Err returns why the latest edit was rejected, or nil when the file on
// disk is the config in effect.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.Check()
		}
	}
}

// Check looks at the file once. It reports whether a reload was applied; the
// error is the reason an edit was rejected. An edit that leaves the
// effective config unchanged, such as a comment, is adopted silently.
func (w *Watcher) Check() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		w.log.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return false, err
	}
	stamp := stampOf(info)

	w.mu.Lock()
	unchanged := stamp == w.stamp
	w.mu.Unlock()
	if unchanged {
		return false, nil
	}

	next, err := Load(w.path)

	w.mu.Lock()
	w.stamp = stamp
	if err != nil {
		w.lastErr = err
		w.mu.Unlock()
		w.log.Warn("config watcher: edit rejected, keeping running config", "path", w.path, "err", err)
		return false, err
	}
	w.lastErr = nil
	old := w.current
	w.current = next
	w.mu.Unlock()

	d := Diff(old, next)
	if d.Empty() {
		w.log.Debug("config watcher: edit has no effect", "path", w.path)
		return false, nil
	}

	w.log.Info("config watcher: configuration reloaded",
		"path", w.path,
		"log_level", d.LogLevelChanged,
		"analysis", d.AnalysisChanged,
		"cors", d.CORSChanged,
		"restart_required", d.RestartRequired,
	)
	// Outside the lock so apply may call Current.
	if w.apply != nil {
		w.apply(Reload{Old: old, New: next, Diff: d})
	}
	return true, nil
}
