// Package plugin wires the generation pipeline into build host hooks.
//
// A Plugin owns one declaration writer and one watcher for the lifetime of
// a build. BuildStart loads the schema, resets the output tree and starts
// watching; BuildEnd waits (bounded) for the initial pass and shuts the
// watcher down; Transform turns query modules into runtime JavaScript.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/leapstack-labs/typedgql/internal/barrier"
	"github.com/leapstack-labs/typedgql/internal/codegen"
	"github.com/leapstack-labs/typedgql/internal/watch"
	"github.com/leapstack-labs/typedgql/internal/writer"
)

// Defaults applied by New.
const (
	DefaultSchemaPath     = "schema.graphql"
	DefaultSearchDir      = "src"
	DefaultStartupTimeout = 10 * time.Second
)

// DefaultExtensions are the query file extensions handled by default.
var DefaultExtensions = []string{".gql", ".graphql"}

var (
	// ErrNotStarted is returned by hooks that need BuildStart first.
	ErrNotStarted = errors.New("typedgql: plugin not started")
	// ErrAlreadyStarted is returned when BuildStart runs twice.
	ErrAlreadyStarted = errors.New("typedgql: plugin already started")
)

// Config configures a Plugin. Relative paths resolve against BaseDir.
type Config struct {
	SchemaPath     string
	Scalars        map[string]string
	SearchDir      string
	Extensions     []string
	VirtualDir     string
	BaseDir        string
	StartupTimeout time.Duration
	Concurrency    int
	Logger         *slog.Logger
}

// Report summarizes a build.
type Report struct {
	Stats Stats
	// StartupErr is set when the initial pass did not finish in time or the
	// initial scan of the search directory failed.
	StartupErr error
	// Artifacts lists source paths that currently have a declaration.
	Artifacts []string
}

// changeWatcher is the part of *watch.Watcher the plugin drives.
type changeWatcher interface {
	Start(ctx context.Context) error
	Events() <-chan watch.Event
	Ready() <-chan struct{}
	Err() error
	Root() string
	Close() error
}

// Plugin is one activation of the pipeline.
type Plugin struct {
	cfg        Config
	logger     *slog.Logger
	newWatcher func(watch.Options) (changeWatcher, error)

	mu         sync.Mutex
	writer     *writer.Writer
	watcher    changeWatcher
	dispatcher *Dispatcher
	cancel     context.CancelFunc
	loopDone   chan struct{}
	startupErr error
	ended      bool
}

// New returns a plugin with defaults applied to cfg.
func New(cfg Config) *Plugin {
	if cfg.SchemaPath == "" {
		cfg.SchemaPath = DefaultSchemaPath
	}
	if cfg.SearchDir == "" {
		cfg.SearchDir = DefaultSearchDir
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.VirtualDir == "" {
		cfg.VirtualDir = writer.DefaultVirtualDir
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = DefaultStartupTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Plugin{
		cfg:    cfg,
		logger: cfg.Logger,
		newWatcher: func(opts watch.Options) (changeWatcher, error) {
			return watch.New(opts)
		},
	}
}

// BuildStart loads the schema, initializes the output tree and starts
// watching the search directory. Initial generation runs in the background.
// Schema and output root failures are returned as
// *writer.InitializationError.
func (p *Plugin) BuildStart(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer != nil {
		return ErrAlreadyStarted
	}

	baseDir := p.cfg.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return &writer.InitializationError{Stage: "base directory", Cause: err}
		}
		baseDir = wd
	}
	schemaPath := p.cfg.SchemaPath
	if !filepath.IsAbs(schemaPath) {
		schemaPath = filepath.Join(baseDir, schemaPath)
	}

	p.logger.Info("loading schema", "path", schemaPath)
	schema, err := codegen.LoadSchema(schemaPath)
	if err != nil {
		return &writer.InitializationError{Stage: "schema", Cause: err}
	}

	w, err := writer.Initialize(schema, p.cfg.Scalars, writer.Options{
		BaseDir:    baseDir,
		VirtualDir: p.cfg.VirtualDir,
		Protected:  []string{p.cfg.SearchDir, schemaPath},
		Logger:     p.logger,
	})
	if err != nil {
		return err
	}

	watcher, err := p.newWatcher(watch.Options{
		BaseDir:  baseDir,
		Root:     p.cfg.SearchDir,
		Patterns: patternsFor(p.cfg.Extensions),
		Ignore:   []string{schemaPath},
		Logger:   p.logger,
	})
	if err != nil {
		return &writer.InitializationError{Stage: "watcher", Cause: err}
	}

	// Generation must outlive the caller's deadline; only BuildEnd stops it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := watcher.Start(runCtx); err != nil {
		cancel()
		_ = watcher.Close()
		return &writer.InitializationError{Stage: "watcher", Cause: err}
	}

	p.writer = w
	p.watcher = watcher
	p.dispatcher = NewDispatcher(w, p.logger, p.cfg.Concurrency)
	p.cancel = cancel
	p.loopDone = make(chan struct{})

	go func() {
		defer close(p.loopDone)
		p.dispatcher.Run(runCtx, watcher.Events())
	}()

	p.logger.Info("watching query files",
		"dir", watcher.Root(),
		"extensions", strings.Join(p.cfg.Extensions, ","),
		"output", filepath.Dir(w.SchemaDeclarationPath()))
	return nil
}

// Transform compiles a query module to JavaScript. ok is false when id is
// not a query file.
func (p *Plugin) Transform(code, id string) (js string, ok bool, err error) {
	if !p.handles(id) {
		return "", false, nil
	}

	p.mu.Lock()
	w := p.writer
	p.mu.Unlock()
	if w == nil {
		return "", true, ErrNotStarted
	}

	js, err = w.QueryToJS(code)
	if err != nil {
		return "", true, fmt.Errorf("transform %s: %w", id, err)
	}
	return js, true, nil
}

// BuildEnd waits for the initial pass, bounded by the startup timeout, then
// stops the watcher and waits for in-flight handlers. A timeout or a failed
// initial scan is logged and recorded in the report, not returned. The
// watcher is closed on every path.
func (p *Plugin) BuildEnd(ctx context.Context) (err error) {
	p.mu.Lock()
	if p.watcher == nil {
		p.mu.Unlock()
		return ErrNotStarted
	}
	if p.ended {
		p.mu.Unlock()
		return nil
	}
	p.ended = true
	watcher := p.watcher
	p.mu.Unlock()

	defer func() {
		if closeErr := p.shutdown(watcher); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	start := time.Now()
	if waitErr := barrier.Await(ctx, watcher.Ready(), p.cfg.StartupTimeout); waitErr != nil {
		p.mu.Lock()
		p.startupErr = waitErr
		p.mu.Unlock()
		if errors.Is(waitErr, barrier.ErrTimeout) {
			p.logger.Warn("initial generation did not finish in time", "timeout", p.cfg.StartupTimeout)
		} else {
			p.logger.Warn("stopped waiting for initial generation", "error", waitErr)
		}
		return nil
	}

	if scanErr := watcher.Err(); scanErr != nil {
		p.mu.Lock()
		p.startupErr = fmt.Errorf("initial scan: %w", scanErr)
		p.mu.Unlock()
		p.logger.Warn("initial scan failed", "dir", watcher.Root(), "error", scanErr)
		return nil
	}

	p.logger.Debug("initial scan emitted", "elapsed", time.Since(start))
	return nil
}

// shutdown closes the watcher, drains queued events and waits for handlers.
func (p *Plugin) shutdown(watcher changeWatcher) error {
	err := watcher.Close()
	<-p.loopDone
	p.dispatcher.Wait()
	p.cancel()

	if err != nil {
		p.logger.Error("failed to close watcher", "error", err)
		return fmt.Errorf("close watcher: %w", err)
	}
	return nil
}

// Ready is closed once the initial scan has been emitted. It returns nil
// before BuildStart.
func (p *Plugin) Ready() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watcher == nil {
		return nil
	}
	return p.watcher.Ready()
}

// Writer returns the declaration writer, or nil before BuildStart.
func (p *Plugin) Writer() *writer.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer
}

// Report returns the build summary so far.
func (p *Plugin) Report() (Report, error) {
	p.mu.Lock()
	w, d, startupErr := p.writer, p.dispatcher, p.startupErr
	p.mu.Unlock()

	if w == nil {
		return Report{}, ErrNotStarted
	}
	artifacts, err := w.Artifacts()
	if err != nil {
		return Report{}, err
	}
	return Report{Stats: d.Stats(), StartupErr: startupErr, Artifacts: artifacts}, nil
}

func (p *Plugin) handles(id string) bool {
	if i := strings.IndexByte(id, '?'); i >= 0 {
		id = id[:i]
	}
	return slices.Contains(p.cfg.Extensions, filepath.Ext(id))
}

func patternsFor(extensions []string) []string {
	patterns := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		patterns = append(patterns, "**/*"+ext)
	}
	return patterns
}
