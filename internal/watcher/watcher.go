// Package watcher turns filesystem notifications for rule sources into
// reload events.
//
// A Watcher observes configured package directories recursively, filters
// notifications down to rule source files, and debounces bursts (editors
// commonly produce several writes per save) before handing one coalesced
// event per path to the reload queue.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lavignes/roolz/internal/reload"
)

// RuleFileExt is the filename extension for roolz rule sources.
const RuleFileExt = ".rlz"

// DefaultDebounce is the default per-path coalescing window.
const DefaultDebounce = time.Second

// Sink receives coalesced file events. Implemented by
// (*reload.Reloader).Enqueue.
type Sink func(reload.Event) bool

// Watcher observes rule package directories and forwards debounced
// change events to a sink.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	sink     Sink
	log      *slog.Logger

	mu      sync.Mutex
	pending map[string]reload.EventType
	timers  map[string]*time.Timer
}

// New creates a Watcher forwarding events to sink.
// A zero debounce means DefaultDebounce; a nil logger means slog.Default().
func New(debounce time.Duration, sink Sink, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		fsw:      fsw,
		debounce: debounce,
		sink:     sink,
		log:      logger,
		pending:  make(map[string]reload.EventType),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Watch registers root and every directory below it. New subdirectories
// created later are picked up by the Run loop.
func (w *Watcher) Watch(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.fsw.Add(path)
	})
}

// Run forwards notifications until ctx is cancelled.
// Returns ctx.Err() on cancellation; notification channel closure ends the
// loop with a nil error.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stopTimers()
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	// A new directory under a watched root needs its own watch.
	if ev.Op.Has(fsnotify.Create) {
		if err := w.fsw.Add(ev.Name); err == nil {
			// Added paths that turn out to be files are harmless;
			// fsnotify dedupes directory watches.
			w.log.Debug("watching new path", "path", ev.Name)
		}
	}

	if !IsRuleFile(ev.Name) {
		return
	}

	switch {
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.schedule(ev.Name, reload.EventRemove)
	case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
		w.schedule(ev.Name, reload.EventWrite)
	}
	// Chmod is ignored.
}

// schedule records the latest event type for a path and (re)starts its
// debounce timer. Within one window the last event wins: a write followed
// by a remove flushes as a remove.
func (w *Watcher) schedule(path string, typ reload.EventType) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = typ
	if timer, ok := w.timers[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.flush(path)
	})
}

func (w *Watcher) flush(path string) {
	w.mu.Lock()
	typ, ok := w.pending[path]
	delete(w.pending, path)
	delete(w.timers, path)
	w.mu.Unlock()

	if !ok {
		return
	}
	if !w.sink(reload.Event{Type: typ, Path: path}) {
		w.log.Debug("sink closed, dropping event", "path", path)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
		delete(w.pending, path)
	}
}

// IsRuleFile reports whether path names a roolz rule source.
func IsRuleFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), RuleFileExt)
}
