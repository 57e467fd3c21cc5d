package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher keeps the config file at path under observation and hands every
// new valid configuration to a callback together with the one it replaces.
//
// The file is polled rather than watched through filesystem notifications:
// editors that save by renaming a temporary file over the original break
// inotify watches, and polling a single small file is cheap. [Watcher.Reload]
// forces a check outside the polling cadence (wired to SIGHUP by the CLI).
type Watcher struct {
	path     string
	interval time.Duration
	lookup   LookupFunc
	onChange func(old, new *Config)

	// mu serialises checks and guards current and stamp.
	mu      sync.Mutex
	current *Config
	stamp   fileStamp

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// fileStamp identifies one version of the config file. mtime and size are
// compared first so that unchanged files are never read.
type fileStamp struct {
	mtime time.Time
	size  int64
	sum   [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval (default 5s).
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLookup applies environment overrides to every reloaded config so that
// reloads resolve exactly like [Resolve].
func WithLookup(lookup LookupFunc) WatcherOption {
	return func(w *Watcher) { w.lookup = lookup }
}

// NewWatcher loads path and starts polling it. The initial load must
// succeed; onChange may be nil.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	cfg, sum, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current = cfg
	w.stamp = fileStamp{mtime: info.ModTime(), size: info.Size(), sum: sum}

	go w.poll()
	return w, nil
}

// Current returns the most recently accepted config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Reload checks the file now, even if its modification time is unchanged.
// It reports whether a new config was accepted. An invalid file is returned
// as an error and the current config stays in effect.
func (w *Watcher) Reload() (bool, error) {
	return w.check(true)
}

// Stop ends polling and waits for an in-flight callback to return. It is
// safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.stopped
}

func (w *Watcher) poll() {
	defer close(w.stopped)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			if _, err := w.check(false); err != nil {
				slog.Warn("config reload failed, keeping the running config", "path", w.path, "err", err)
			}
		}
	}
}

func (w *Watcher) check(force bool) (bool, error) {
	w.mu.Lock()
	info, err := os.Stat(w.path)
	if err != nil {
		w.mu.Unlock()
		return false, fmt.Errorf("config: stat %s: %w", w.path, err)
	}
	if !force && info.ModTime().Equal(w.stamp.mtime) && info.Size() == w.stamp.size {
		w.mu.Unlock()
		return false, nil
	}

	cfg, sum, err := w.read()
	if err != nil {
		w.mu.Unlock()
		return false, err
	}
	next := fileStamp{mtime: info.ModTime(), size: info.Size(), sum: sum}
	if sum == w.stamp.sum {
		// Touched or rewritten with identical content.
		w.stamp = next
		w.mu.Unlock()
		return false, nil
	}
	old := w.current
	w.current, w.stamp = cfg, next
	w.mu.Unlock()

	slog.Info("config reloaded", "path", w.path)
	// Outside the lock so the callback may call Current.
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
	return true, nil
}

func (w *Watcher) read() (*Config, [sha256.Size]byte, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, [sha256.Size]byte{}, fmt.Errorf("config: read %s: %w", w.path, err)
	}
	cfg, err := parse(bytes.NewReader(data), w.lookup)
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	return cfg, sha256.Sum256(data), nil
}
