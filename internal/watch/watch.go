// Package watch emits an event when the analysis input file changes on
// disk, coalescing rapid write bursts into one event per settle window.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a single file through its parent directory, so atomic
// replace-by-rename saves are seen as well as in-place writes.
type Watcher struct {
	path     string
	debounce time.Duration
	fsw      *fsnotify.Watcher
	events   chan string
	logger   *slog.Logger
}

// New creates a Watcher for path. The parent directory must exist; the file
// itself may appear later.
func New(path string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(abs)
	if err := fsw.Add(dir); err != nil {
		fsw.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		path:     abs,
		debounce: debounce,
		fsw:      fsw,
		events:   make(chan string, 1),
		logger:   logger,
	}, nil
}

// Events delivers the watched path once per settled change burst.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Run processes filesystem events until the context is cancelled or the
// watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("input file event", "op", ev.Op.String(), "path", ev.Name)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "error", err)
		case <-timer.C:
			select {
			case w.events <- w.path:
			default:
				// an event is already queued; the consumer re-reads the
				// latest file contents either way
			}
		}
	}
}

// Close stops the underlying filesystem watcher. Run returns after Close.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	name, err := filepath.Abs(ev.Name)
	if err != nil || name != w.path {
		return false
	}
	return ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0
}
