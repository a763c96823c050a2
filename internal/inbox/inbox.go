// Package inbox watches a drop directory for edited pages and applies them
// to catalog documents. A page for document D with id P is dropped as
// <inbox>/D/P.htm; once applied the file is removed, and a page that cannot
// be applied is renamed with a .rejected suffix.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"pagepatch/internal/catalog"
	"pagepatch/internal/config"
	"pagepatch/internal/storage"
)

// RejectedSuffix is appended to inbox files that could not be applied
const RejectedSuffix = ".rejected"

// Replacer applies one page to one document
type Replacer interface {
	ReplacePage(ctx context.Context, docID, pageID, replacement string) (*catalog.Edit, error)
}

// Stats are point-in-time counters
type Stats struct {
	Events   int64 `json:"events"`
	Applied  int64 `json:"applied"`
	Rejected int64 `json:"rejected"`
	Errors   int64 `json:"errors"`
}

// Watcher applies dropped pages through a Replacer. It is safe for
// concurrent use, but Run must only be called once.
type Watcher struct {
	dir      string
	debounce time.Duration
	target   Replacer
	store    *storage.Store
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	due     chan string
	done    chan struct{}
	stop    sync.Once

	events   atomic.Int64
	applied  atomic.Int64
	rejected atomic.Int64
	errors   atomic.Int64
}

// New creates a watcher for cfg.InboxDir
func New(cfg config.Config, target Replacer, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.InboxDebounce
	if debounce <= 0 {
		debounce = config.Default().InboxDebounce
	}
	return &Watcher{
		dir:      cfg.InboxDir,
		debounce: debounce,
		target:   target,
		store:    &storage.Store{},
		logger:   logger,
		pending:  make(map[string]*time.Timer),
		due:      make(chan string, 16),
		done:     make(chan struct{}),
	}
}

// Stats returns the current counters
func (w *Watcher) Stats() Stats {
	return Stats{
		Events:   w.events.Load(),
		Applied:  w.applied.Load(),
		Rejected: w.rejected.Load(),
		Errors:   w.errors.Load(),
	}
}

// Run applies pages already waiting in the inbox, then watches it until ctx
// is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.shutdown()

	if w.dir == "" {
		return fmt.Errorf("inbox: no directory configured")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("inbox: mkdir %s: %w", w.dir, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: create watcher: %w", err)
	}
	defer fw.Close()

	// fsnotify is not recursive: watch the root and every document directory
	if err := w.addTree(fw, w.dir); err != nil {
		return err
	}
	if err := w.Drain(ctx); err != nil {
		return err
	}

	w.logger.Info("inbox: started", "dir", w.dir, "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inbox: stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fw, ev)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.errors.Add(1)
			w.logger.Warn("inbox: watcher error", "error", err)

		case path := <-w.due:
			w.mu.Lock()
			delete(w.pending, path)
			w.mu.Unlock()
			w.process(ctx, path)
		}
	}
}

// Drain applies every page currently in the inbox, once
func (w *Watcher) Drain(ctx context.Context) error {
	err := filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isPageFile(path) {
			return nil
		}
		w.process(ctx, path)
		return ctx.Err()
	})
	if err != nil {
		return fmt.Errorf("inbox: drain %s: %w", w.dir, err)
	}
	return nil
}

func (w *Watcher) handleEvent(ctx context.Context, fw *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(fw, ev.Name); err != nil {
				w.errors.Add(1)
				w.logger.Warn("inbox: watch directory", "dir", ev.Name, "error", err)
			}
			return
		}
	}

	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if !isPageFile(ev.Name) {
		return
	}

	w.events.Add(1)
	w.schedule(ctx, ev.Name)
}

// schedule (re)starts the quiet period for path
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() { w.deliver(ctx, path) })
	w.logger.Debug("inbox: change detected, debouncing", "path", path)
}

// deliver hands a settled path to the Run loop. It gives up once Run has
// returned, even if ctx is still live.
func (w *Watcher) deliver(ctx context.Context, path string) {
	select {
	case w.due <- path:
	case <-ctx.Done():
	case <-w.done:
	}
}

// shutdown releases pending timer callbacks when Run returns
func (w *Watcher) shutdown() {
	w.stop.Do(func() { close(w.done) })
	w.stopTimers()
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("inbox: watch %s: %w", path, err)
		}
		return nil
	})
}

// process applies a single inbox file. The outcome is recorded in the
// counters and the file is removed or set aside.
func (w *Watcher) process(ctx context.Context, path string) {
	docID, pageID, ok := ParsePath(w.dir, path)
	if !ok {
		w.logger.Debug("inbox: ignoring file", "path", path)
		return
	}

	text, err := w.store.Read(ctx, path)
	if errors.Is(err, storage.ErrNotExist) {
		// Already handled by an earlier event
		return
	}
	if err != nil {
		w.errors.Add(1)
		w.logger.Error("inbox: read failed", "path", path, "error", err)
		return
	}

	_, err = w.target.ReplacePage(ctx, docID, pageID, text)
	switch {
	case err == nil:
		w.applied.Add(1)
		if err := os.Remove(path); err != nil {
			w.logger.Warn("inbox: remove applied file", "path", path, "error", err)
		}
		w.logger.Info("inbox: page applied", "doc_id", docID, "page_id", pageID)

	case errors.Is(err, catalog.ErrRejected),
		errors.Is(err, catalog.ErrPageNotFound),
		errors.Is(err, catalog.ErrNotFound):
		w.rejected.Add(1)
		if err := os.Rename(path, path+RejectedSuffix); err != nil {
			w.logger.Warn("inbox: set aside rejected file", "path", path, "error", err)
		}
		w.logger.Warn("inbox: page rejected", "doc_id", docID, "page_id", pageID, "error", err)

	default:
		// Left in place so the next write or restart retries it
		w.errors.Add(1)
		w.logger.Error("inbox: apply failed", "doc_id", docID, "page_id", pageID, "error", err)
	}
}

// ParsePath splits an inbox file path into document and page ids. The path
// must be exactly two levels below root: <root>/<doc-id>/<page-id>.htm
func ParsePath(root, path string) (docID, pageID string, ok bool) {
	if !isPageFile(path) {
		return "", "", false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", "", false
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 || parts[0] == "" || parts[0] == ".." || strings.HasPrefix(parts[0], ".") {
		return "", "", false
	}

	pageID = strings.TrimSuffix(parts[1], filepath.Ext(parts[1]))
	if pageID == "" {
		return "", "", false
	}
	return parts[0], pageID, true
}

func isPageFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".htm", ".html":
		return true
	}
	return false
}
