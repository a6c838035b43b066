package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"imgvault/internal/codec"
	"imgvault/internal/fileutil"
	"imgvault/internal/logging"
)

// StableFunc receives a settled file.
type StableFunc func(ctx context.Context, path string)

// Options configures a Watcher.
type Options struct {
	Settle time.Duration
	// Tick is how often settled files are collected. Defaults to a quarter
	// of Settle, at most one second.
	Tick time.Duration
	// SkipDir excludes a directory subtree (the vault).
	SkipDir func(path string) bool
}

// Watcher tracks image files under a root directory.
type Watcher struct {
	fs      *fsnotify.Watcher
	root    string
	settle  time.Duration
	tick    time.Duration
	skipDir func(string) bool
	onReady StableFunc
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
	pending map[string]time.Time
}

// New creates a watcher for root. Nothing is watched until Run.
func New(root string, opts Options, onReady StableFunc, logger *slog.Logger) (*Watcher, error) {
	if onReady == nil {
		return nil, errors.New("watcher requires a handler")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = min(max(opts.Settle/4, 10*time.Millisecond), time.Second)
	}
	return &Watcher{
		fs:      fsw,
		root:    filepath.Clean(root),
		settle:  opts.Settle,
		tick:    tick,
		skipDir: opts.SkipDir,
		onReady: onReady,
		logger:  logging.NewComponentLogger(logger, "watch"),
		pending: make(map[string]time.Time),
	}, nil
}

// Start registers the directory tree. Run calls it when needed; calling it
// first guarantees that files created afterwards are seen.
func (w *Watcher) Start() error {
	w.mu.Lock()
	started := w.started
	w.started = true
	w.mu.Unlock()
	if started {
		return nil
	}
	return w.addTree(w.root, false)
}

// Run watches until ctx is done, then releases the fsnotify handle.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()
	if err := w.Start(); err != nil {
		return err
	}
	w.logger.Info("watching uploads",
		logging.String("root", w.root),
		logging.Duration("settle", w.settle),
		logging.String(logging.FieldEventType, "watch_started"),
	)

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "watch error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "raise fs.inotify.max_user_watches if the tree is large"),
				logging.String(logging.FieldImpact, "some uploads may need a manual scan"),
			)
		case now := <-ticker.C:
			for _, path := range w.collect(now) {
				if ctx.Err() != nil {
					return nil
				}
				w.onReady(ctx, path)
			}
		}
	}
}

// Pending returns how many files are waiting to settle.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			w.forget(event.Name)
		}
		return
	}
	info, err := os.Lstat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			// Files may land before the new directory's watch is in place.
			if err := w.addTree(event.Name, true); err != nil {
				w.logger.Debug("could not watch new directory", logging.String("path", event.Name), logging.Error(err))
			}
		}
		return
	}
	if info.Mode().IsRegular() {
		w.track(event.Name)
	}
}

func (w *Watcher) addTree(root string, trackFiles bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if path != w.root && (strings.HasPrefix(d.Name(), ".") || (w.skipDir != nil && w.skipDir(path))) {
				return fs.SkipDir
			}
			return w.fs.Add(path)
		}
		if trackFiles && d.Type().IsRegular() {
			w.track(path)
		}
		return nil
	})
}

func (w *Watcher) track(path string) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, fileutil.TempPrefix) {
		return
	}
	if _, ok := codec.MIMEForPath(path); !ok {
		return
	}
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()
}

func (w *Watcher) collect(now time.Time) []string {
	threshold := now.Add(-w.settle)
	w.mu.Lock()
	defer w.mu.Unlock()
	var ready []string
	for path, seen := range w.pending {
		if !seen.After(threshold) {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	return ready
}
