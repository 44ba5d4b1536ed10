package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/RealFaceCode/ContextBrain/internal/extractor"
	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

// DefaultDebounce is the quiet period after the last change before a re-index
const DefaultDebounce = 2 * time.Second

// ReindexFunc re-indexes the watched project
type ReindexFunc func(ctx context.Context) error

// Watcher triggers a full re-index of a project once file changes settle
type Watcher struct {
	root     string
	filter   *extractor.Coordinator
	reindex  ReindexFunc
	debounce time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
}

// New watches every non-excluded directory under root. filter decides which
// changed paths count: excluded or unsupported files are ignored.
func New(root string, filter *extractor.Coordinator, debounce time.Duration, reindex ReindexFunc, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if filter == nil {
		filter = extractor.New(nil, extractor.Config{}, logger)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if err := extractor.CheckRoot(root); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &Watcher{
		root:     abs,
		filter:   filter,
		reindex:  reindex,
		debounce: debounce,
		logger:   logger,
		fsw:      fsw,
	}
	if err := w.addRecursive(abs); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is done or the watcher is closed.
// Re-index failures are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := 0

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if pending == 0 {
				w.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
			}
			pending++
			timer.Reset(w.debounce)

		case <-timer.C:
			w.logger.Info("re-indexing after changes", "root", w.root, "events", pending)
			pending = 0
			start := time.Now()
			if err := w.reindex(ctx); err != nil {
				if errors.Is(err, types.ErrIndexingInProgress) {
					// retry once the running index finishes
					pending = 1
					timer.Reset(w.debounce)
					continue
				}
				w.logger.Error("re-index failed", "root", w.root, "error", err)
				continue
			}
			w.logger.Info("re-index complete", "root", w.root, "duration", time.Since(start))

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// Close stops watching. A running Run returns nil.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// relevant reports whether an event should schedule a re-index. New
// directories are added to the watch list as a side effect.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	rel, ok := w.rel(event.Name)
	if !ok || w.filter.IsExcluded(rel) {
		return false
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", rel, "error", err)
			}
			return true
		}
	}
	// removed or renamed directories have no extension but still drop files
	if (event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename)) && path.Ext(rel) == "" {
		return true
	}
	return w.filter.Supports(rel)
}

func (w *Watcher) rel(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil || rel == "." {
		return "", false
	}
	return types.NormalizePath(filepath.ToSlash(rel)), true
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.rel(p); ok && w.filter.IsExcluded(rel) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			w.logger.Warn("failed to watch directory", "path", p, "error", err)
		}
		return nil
	})
}
