// Package watch reports query file changes under a directory tree.
//
// A Watcher first scans the tree and emits an Add event per matching file,
// then signals Ready exactly once and keeps translating fsnotify
// notifications into Add, Change and Unlink events until it is closed.
package watch

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

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultPatterns match GraphQL query documents at any depth.
var DefaultPatterns = []string{"**/*.gql", "**/*.graphql"}

const defaultBuffer = 64

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("watch: watcher closed")

// Op is the kind of a change event.
type Op int

// Event kinds.
const (
	Add Op = iota + 1
	Change
	Unlink
	Error
)

// String returns the lower-case name of the op.
func (o Op) String() string {
	switch o {
	case Add:
		return "add"
	case Change:
		return "change"
	case Unlink:
		return "unlink"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Event is a single change notification. Path is relative to the base
// directory and slash separated. Err is set for Error events only.
type Event struct {
	Op   Op
	Path string
	Err  error
}

// State is the lifecycle state of a Watcher.
type State int32

// Watcher states. Closed is terminal.
const (
	StateIdle State = iota
	StateScanning
	StateReady
	StateClosed
	StateError
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options configures a Watcher.
type Options struct {
	// BaseDir is the directory event paths are made relative to. Defaults to
	// the current working directory.
	BaseDir string
	// Root is the directory to watch, relative to BaseDir unless absolute.
	Root string
	// Patterns are doublestar globs matched against paths relative to Root.
	// Defaults to DefaultPatterns.
	Patterns []string
	// Ignore lists files that never produce events, even when they match.
	Ignore []string
	Logger *slog.Logger
	// Buffer is the capacity of the events channel.
	Buffer int
}

// Watcher watches a directory tree for query files.
type Watcher struct {
	baseDir  string
	root     string
	patterns []string
	ignore   map[string]bool
	logger   *slog.Logger

	fsw    *fsnotify.Watcher
	events chan Event
	ready  chan struct{}
	done   chan struct{}

	// known holds absolute paths of matching files. Only the run goroutine
	// touches it.
	known map[string]bool
	// scanErr is written before ready is closed and read only after.
	scanErr error

	state     atomic.Int32
	startMu   sync.Mutex
	started   bool
	closed    bool
	readyOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New validates opts and creates an idle Watcher.
func New(opts Options) (*Watcher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	baseDir := opts.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve base dir: %w", err)
		}
		baseDir = wd
	}
	baseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}

	root := opts.Root
	if !filepath.IsAbs(root) {
		root = filepath.Join(baseDir, root)
	}

	patterns := opts.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid watch pattern %q", p)
		}
	}

	ignore := make(map[string]bool, len(opts.Ignore))
	for _, p := range opts.Ignore {
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		ignore[filepath.Clean(p)] = true
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	return &Watcher{
		baseDir:  baseDir,
		root:     filepath.Clean(root),
		patterns: append([]string(nil), patterns...),
		ignore:   ignore,
		logger:   logger,
		fsw:      fsw,
		events:   make(chan Event, buffer),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		known:    make(map[string]bool),
	}, nil
}

// Start begins scanning in the background. It returns once the watch loop
// is running; use Ready to learn when the initial scan has been emitted.
func (w *Watcher) Start(ctx context.Context) error {
	w.startMu.Lock()
	defer w.startMu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.started {
		return errors.New("watch: already started")
	}
	w.started = true

	w.wg.Add(1)
	go w.run(ctx)
	return nil
}

// Events returns the event stream. It is closed once the watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Ready is closed after every file found by the initial scan has been
// emitted as an Add event.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Err returns the error that stopped the initial scan. It is nil until
// Ready is closed, and nil when the scan succeeded.
func (w *Watcher) Err() error {
	select {
	case <-w.ready:
		return w.scanErr
	default:
		return nil
	}
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// Root returns the absolute watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Close stops the watcher and waits for the watch loop to exit. It is safe
// to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.startMu.Lock()
		w.closed = true
		started := w.started
		w.startMu.Unlock()

		w.forceState(StateClosed)
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
		if !started {
			close(w.events)
		}
		w.logger.Debug("watcher closed", "root", w.root)
	})
	return err
}

func (w *Watcher) setState(s State) {
	for {
		cur := w.state.Load()
		if State(cur) == StateClosed {
			return
		}
		if w.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

func (w *Watcher) forceState(s State) {
	w.state.Store(int32(s))
}

func (w *Watcher) markReady() {
	w.readyOnce.Do(func() { close(w.ready) })
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	defer close(w.events)

	w.setState(StateScanning)
	if err := w.scan(ctx); err != nil {
		w.logger.Error("initial scan failed", "root", w.root, "error", err)
		w.setState(StateError)
		w.scanErr = err
		w.emit(Event{Op: Error, Path: w.relPath(w.root), Err: err})
	} else {
		w.setState(StateReady)
	}
	w.markReady()
	w.logger.Debug("initial scan complete", "root", w.root, "files", len(w.known))

	for {
		select {
		case <-ctx.Done():
			w.setState(StateClosed)
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
			w.emit(Event{Op: Error, Err: err})
		}
	}
}

// emit delivers ev unless the watcher is closing.
func (w *Watcher) emit(ev Event) bool {
	select {
	case w.events <- ev:
		return true
	case <-w.done:
		return false
	}
}

func (w *Watcher) scan(ctx context.Context) error {
	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %s is not a directory", w.root)
	}
	return w.addTree(ctx, w.root)
}

// addTree watches every directory under dir and emits Add for matching
// files not seen before.
func (w *Watcher) addTree(ctx context.Context, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != dir && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != w.root && w.skipDir(path, d.Name()) {
				return filepath.SkipDir
			}
			return w.fsw.Add(path)
		}
		if !w.matches(path) || w.known[path] {
			return nil
		}
		w.known[path] = true
		if !w.emit(Event{Op: Add, Path: w.relPath(path)}) {
			return ErrClosed
		}
		return nil
	})
}

func (w *Watcher) handle(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if w.skipDir(path, filepath.Base(path)) {
				return
			}
			if err := w.addTree(context.Background(), path); err != nil && !errors.Is(err, ErrClosed) {
				w.logger.Error("failed to watch directory", "dir", path, "error", err)
				w.emit(Event{Op: Error, Path: w.relPath(path), Err: err})
			}
			return
		}
		w.touch(path)

	case event.Has(fsnotify.Write):
		w.touch(path)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.unlink(path)
	}
}

// touch emits Add for a new matching file and Change for a known one.
func (w *Watcher) touch(path string) {
	if !w.matches(path) {
		return
	}
	op := Change
	if !w.known[path] {
		w.known[path] = true
		op = Add
	}
	w.emit(Event{Op: op, Path: w.relPath(path)})
}

// unlink emits Unlink for path and for every known file below it.
func (w *Watcher) unlink(path string) {
	if w.known[path] {
		delete(w.known, path)
		w.emit(Event{Op: Unlink, Path: w.relPath(path)})
		return
	}
	prefix := path + string(filepath.Separator)
	for known := range w.known {
		if strings.HasPrefix(known, prefix) {
			delete(w.known, known)
			w.emit(Event{Op: Unlink, Path: w.relPath(known)})
		}
	}
}

func (w *Watcher) skipDir(path, name string) bool {
	if name == "node_modules" || strings.HasPrefix(name, ".") {
		return true
	}
	return w.ignore[path]
}

func (w *Watcher) matches(path string) bool {
	if w.ignore[path] {
		return false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range w.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) relPath(path string) string {
	rel, err := filepath.Rel(w.baseDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
