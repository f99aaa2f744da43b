package plugin

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/typedgql/internal/watch"
)

// DefaultConcurrency bounds how many handlers run at once.
const DefaultConcurrency = 8

// Handler reacts to one change event for path.
type Handler func(ctx context.Context, path string) error

// DeclarationWriter is the part of the writer the dispatcher drives.
type DeclarationWriter interface {
	WriteQueryDeclaration(ctx context.Context, sourcePath string) error
	RemoveQueryDeclaration(ctx context.Context, sourcePath string) error
}

// Failure records a per-file error.
type Failure struct {
	Path   string
	Op     string
	Reason string
}

// Stats counts dispatch outcomes.
type Stats struct {
	Generated int
	Removed   int
	Failed    int
	Failures  []Failure
}

// Dispatcher routes watcher events to handlers. Handlers for different
// events run concurrently; per-path ordering is not enforced, the last
// write to finish wins.
type Dispatcher struct {
	handlers map[watch.Op]Handler
	logger   *slog.Logger
	group    errgroup.Group

	mu    sync.Mutex
	stats Stats
}

// NewDispatcher builds the dispatch table over w. concurrency <= 0 uses
// DefaultConcurrency.
func NewDispatcher(w DeclarationWriter, logger *slog.Logger, concurrency int) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	d := &Dispatcher{logger: logger}
	d.group.SetLimit(concurrency)

	write := func(ctx context.Context, path string) error {
		if err := w.WriteQueryDeclaration(ctx, path); err != nil {
			return err
		}
		d.record(func(s *Stats) { s.Generated++ })
		return nil
	}
	d.handlers = map[watch.Op]Handler{
		watch.Add:    write,
		watch.Change: write,
		watch.Unlink: func(ctx context.Context, path string) error {
			if err := w.RemoveQueryDeclaration(ctx, path); err != nil {
				return err
			}
			d.record(func(s *Stats) { s.Removed++ })
			return nil
		},
	}
	return d
}

// Handler returns the handler registered for op, or nil.
func (d *Dispatcher) Handler(op watch.Op) Handler {
	return d.handlers[op]
}

// Dispatch handles a single event synchronously. Handler failures are
// logged and counted, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, ev watch.Event) {
	if ev.Op == watch.Error {
		d.logger.Error("watcher error", "path", ev.Path, "error", ev.Err)
		return
	}

	h := d.handlers[ev.Op]
	if h == nil {
		d.logger.Debug("no handler for event", "op", ev.Op.String(), "path", ev.Path)
		return
	}

	if err := h(ctx, ev.Path); err != nil {
		d.logger.Warn("failed to generate declaration",
			"path", ev.Path,
			"op", ev.Op.String(),
			"error", err)
		d.record(func(s *Stats) {
			s.Failed++
			s.Failures = append(s.Failures, Failure{Path: ev.Path, Op: ev.Op.String(), Reason: err.Error()})
		})
	}
}

// Run consumes events until the channel closes or ctx is done. Each event
// is handled in its own goroutine, bounded by the concurrency limit. Call
// Wait to wait for in-flight handlers.
func (d *Dispatcher) Run(ctx context.Context, events <-chan watch.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.group.Go(func() error {
				d.Dispatch(ctx, ev)
				return nil
			})
		}
	}
}

// Wait blocks until every handler started by Run has returned.
func (d *Dispatcher) Wait() {
	_ = d.group.Wait()
}

// Stats returns a snapshot of the dispatch counters. Failures are sorted
// by path.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.stats
	s.Failures = append([]Failure(nil), d.stats.Failures...)
	sort.SliceStable(s.Failures, func(i, j int) bool { return s.Failures[i].Path < s.Failures[j].Path })
	return s
}

func (d *Dispatcher) record(fn func(*Stats)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.stats)
}
