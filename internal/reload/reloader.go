// Package reload implements the single-writer reload loop.
//
// The loop consumes file-change events from a FIFO queue, routes changed
// sources through the compiler front end, and records the outcome in the
// registry. All registry writes for watched files happen on the loop
// goroutine, so the order of outcomes matches the order of events.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/lavignes/roolz/internal/compiler"
	"github.com/lavignes/roolz/internal/registry"
)

// Reloader re-parses changed rule sources and records the results.
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Reloader struct {
	reg   *registry.Registry
	queue *eventQueue
	log   *slog.Logger
}

// New creates a Reloader writing outcomes to reg.
// A nil logger defaults to slog.Default().
func New(reg *registry.Registry, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		reg:   reg,
		queue: newEventQueue(),
		log:   logger,
	}
}

// Enqueue submits a file event for processing.
// Returns false if the reloader has been shut down.
func (r *Reloader) Enqueue(e Event) bool {
	return r.queue.Enqueue(e)
}

// Run processes events until ctx is cancelled. Events already queued at
// cancellation time are abandoned; a re-parse on the next change will
// converge the registry.
//
// Returns ctx.Err() on cancellation.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.queue.Close()

	for {
		if e, ok := r.queue.TryDequeue(); ok {
			r.processEvent(ctx, e)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.queue.Wait():
		}
	}
}

func (r *Reloader) processEvent(ctx context.Context, e Event) {
	switch e.Type {
	case EventWrite:
		src, err := r.reloadFile(ctx, e.Path)
		if err != nil {
			r.log.Error("reload failed", "path", e.Path, "error", err)
			return
		}
		if src.OK {
			r.log.Info("source reloaded", "path", e.Path, "package", src.Package, "seq", src.Seq)
		} else {
			r.log.Warn("source rejected", "path", e.Path, "error", src.ErrorText, "seq", src.Seq)
		}

	case EventRemove:
		if err := r.reg.Delete(ctx, e.Path); err != nil {
			r.log.Error("failed to drop removed source", "path", e.Path, "error", err)
			return
		}
		r.log.Info("source removed", "path", e.Path)

	default:
		r.log.Error("unknown event type", "type", int(e.Type), "path", e.Path)
	}
}

// reloadFile parses one file and records the outcome. A parse failure is
// not an error here: it is a recorded outcome. Only registry or file-open
// failures are returned.
func (r *Reloader) reloadFile(ctx context.Context, path string) (registry.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		// The file may have been removed between the event and now;
		// record nothing and let the remove event (or the next write)
		// settle it.
		return registry.Source{}, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	pkg, parseErr := compiler.Parse(f)
	if parseErr != nil {
		return r.reg.Record(ctx, path, "", parseErr)
	}
	return r.reg.Record(ctx, path, pkg.Path, nil)
}
