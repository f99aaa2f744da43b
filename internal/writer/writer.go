// Package writer owns the virtual output tree: it emits the shared schema
// declaration and keeps one declaration artifact per query file in sync with
// its source.
package writer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/leapstack-labs/typedgql/internal/codegen"
	"github.com/leapstack-labs/typedgql/internal/vpath"
)

const (
	// DefaultVirtualDir is the output root, relative to the base directory.
	DefaultVirtualDir = ".gql"

	typesDir        = "types"
	schemaDeclFile  = "schema.d.ts"
	artifactPerm    = 0o644
	artifactDirPerm = 0o755
)

// Options configures a Writer.
type Options struct {
	// BaseDir is the directory source paths are relative to. Defaults to the
	// current working directory.
	BaseDir string
	// VirtualDir is the output root relative to BaseDir.
	VirtualDir string
	// Protected lists paths, relative to BaseDir unless absolute, that the
	// output root must neither equal nor contain. Initialize deletes the
	// output root, so the search directory and schema belong here.
	Protected []string
	Logger    *slog.Logger
}

// Writer generates declaration artifacts for query files. All of its state
// is fixed by Initialize; methods may be called concurrently for distinct
// source paths.
type Writer struct {
	schema   *codegen.Schema
	scalars  map[string]string
	registry []string

	baseDir        string
	rootDir        string
	typesDir       string
	schemaDeclPath string

	logger *slog.Logger
}

// Initialize resets the virtual output tree and writes the schema
// declaration. Any previous content of the output root is removed, so
// calling it twice leaves the same state as calling it once.
func Initialize(schema *codegen.Schema, scalars map[string]string, opts Options) (*Writer, error) {
	if schema == nil {
		return nil, &InitializationError{Stage: "schema", Cause: errors.New("no schema loaded")}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	baseDir := opts.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, &InitializationError{Stage: "base directory", Cause: err}
		}
		baseDir = wd
	}
	baseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, &InitializationError{Stage: "base directory", Cause: err}
	}

	virtualDir := opts.VirtualDir
	if virtualDir == "" {
		virtualDir = DefaultVirtualDir
	}
	rootDir := virtualDir
	if !filepath.IsAbs(rootDir) {
		rootDir = filepath.Join(baseDir, virtualDir)
	}
	rootDir = filepath.Clean(rootDir)
	if vpath.Contains(rootDir, baseDir) {
		return nil, &InitializationError{Stage: "output root", Cause: fmt.Errorf("virtual dir %q must not contain the base directory", virtualDir)}
	}
	for _, p := range opts.Protected {
		if p == "" {
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		if vpath.Contains(rootDir, p) {
			return nil, &InitializationError{Stage: "output root", Cause: fmt.Errorf("virtual dir %q must not contain %s", virtualDir, p)}
		}
	}

	w := &Writer{
		schema:         schema,
		scalars:        maps.Clone(scalars),
		baseDir:        baseDir,
		rootDir:        rootDir,
		typesDir:       filepath.Join(rootDir, typesDir),
		schemaDeclPath: filepath.Join(rootDir, schemaDeclFile),
		logger:         logger,
	}
	if w.scalars == nil {
		w.scalars = map[string]string{}
	}

	if err := os.RemoveAll(rootDir); err != nil {
		return nil, &InitializationError{Stage: "output root", Cause: err}
	}
	if err := os.MkdirAll(w.typesDir, artifactDirPerm); err != nil {
		return nil, &InitializationError{Stage: "output root", Cause: err}
	}

	decl := codegen.SchemaDeclaration(schema, w.scalars)
	if err := writeFileAtomic(w.schemaDeclPath, []byte(decl)); err != nil {
		return nil, &InitializationError{Stage: "schema declaration", Cause: err}
	}
	w.registry = registryFor(schema, decl)

	logger.Debug("initialized output tree",
		"root", rootDir,
		"schema", schema.Name(),
		"named_types", len(w.registry))
	return w, nil
}

// WriteQueryDeclaration regenerates the artifact for sourcePath. On failure
// nothing is written and any previous artifact is left untouched.
func (w *Writer) WriteQueryDeclaration(ctx context.Context, sourcePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rel, abs, err := w.resolve(sourcePath)
	if err != nil {
		return err
	}
	target, err := vpath.ToVirtualPath(rel, w.typesDir)
	if err != nil {
		return err
	}

	src, err := os.ReadFile(abs) //nolint:gosec // G304: paths come from the watcher
	if err != nil {
		return &FileSystemError{Op: "read", Path: rel, Cause: err}
	}

	body, err := codegen.DeclarationTransform(string(src), w.schema, w.scalars)
	if err != nil {
		return fmt.Errorf("generate %s: %w", rel, err)
	}

	content := w.render(filepath.Dir(target), body)

	if err := os.MkdirAll(filepath.Dir(target), artifactDirPerm); err != nil {
		return &FileSystemError{Op: "mkdir", Path: filepath.Dir(target), Cause: err}
	}
	if err := writeFileAtomic(target, []byte(content)); err != nil {
		return &FileSystemError{Op: "write", Path: target, Cause: err}
	}

	w.logger.Debug("wrote declaration", "source", rel, "artifact", target)
	return nil
}

// RemoveQueryDeclaration deletes the artifact for sourcePath. A missing
// artifact is not an error.
func (w *Writer) RemoveQueryDeclaration(ctx context.Context, sourcePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := w.ArtifactPath(sourcePath)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &FileSystemError{Op: "remove", Path: target, Cause: err}
	}

	w.logger.Debug("removed declaration", "artifact", target)
	return nil
}

// QueryToJS returns the runtime module for a query document.
func (w *Writer) QueryToJS(src string) (string, error) {
	return codegen.RuntimeTransform(src, w.schema, w.scalars)
}

// ArtifactPath returns the absolute declaration path for sourcePath.
func (w *Writer) ArtifactPath(sourcePath string) (string, error) {
	rel, _, err := w.resolve(sourcePath)
	if err != nil {
		return "", err
	}
	return vpath.ToVirtualPath(rel, w.typesDir)
}

// Artifacts lists the source paths (slash separated, relative to the base
// directory) that currently have a declaration artifact, sorted.
func (w *Writer) Artifacts() ([]string, error) {
	var sources []string
	err := filepath.WalkDir(w.typesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		src, err := vpath.FromVirtualPath(path, w.typesDir)
		if err != nil {
			// Temporary files of in-flight writes.
			return nil
		}
		sources = append(sources, filepath.ToSlash(src))
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &FileSystemError{Op: "walk", Path: w.typesDir, Cause: err}
	}
	sort.Strings(sources)
	return sources, nil
}

// SchemaDeclarationPath returns the path of the shared schema declaration.
func (w *Writer) SchemaDeclarationPath() string {
	return w.schemaDeclPath
}

// Registry returns the named types exported by the schema declaration.
func (w *Writer) Registry() []string {
	return append([]string(nil), w.registry...)
}

// resolve turns sourcePath into a clean path relative to the base
// directory and its absolute form.
func (w *Writer) resolve(sourcePath string) (rel, abs string, err error) {
	p := filepath.FromSlash(sourcePath)
	if filepath.IsAbs(p) {
		abs = filepath.Clean(p)
		rel, err = filepath.Rel(w.baseDir, abs)
		if err != nil {
			return "", "", &vpath.InvalidPathError{Path: sourcePath, Reason: err.Error()}
		}
	} else {
		rel = filepath.Clean(p)
		abs = filepath.Join(w.baseDir, rel)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", &vpath.InvalidPathError{Path: sourcePath, Reason: "outside of base directory"}
	}
	return rel, abs, nil
}

// registryFor lists the named types of decl that query declarations may
// import. Operation root types are inlined into every result type and never
// referenced by name.
func registryFor(schema *codegen.Schema, decl string) []string {
	roots := schema.RootTypeNames()
	var names []string
	for _, name := range codegen.ExtractNamedTypes(decl) {
		if !slices.Contains(roots, name) {
			names = append(names, name)
		}
	}
	return names
}

// render prefixes body with an import of every schema type it mentions.
func (w *Writer) render(dir, body string) string {
	var names []string
	for _, name := range w.registry {
		if strings.Contains(body, name) {
			names = append(names, name)
		}
	}

	var b strings.Builder
	specifier := vpath.ImportSpecifier(dir, w.schemaDeclPath)
	if len(names) == 0 {
		fmt.Fprintf(&b, "import type {} from %q;\n", specifier)
	} else {
		fmt.Fprintf(&b, "import type { %s } from %q;\n", strings.Join(names, ", "), specifier)
	}
	b.WriteString(body)
	if !strings.Contains(body, codegen.Guard) {
		if !strings.HasSuffix(body, "\n") {
			b.WriteString("\n")
		}
		b.WriteString(codegen.Guard)
		b.WriteString("\n")
	}
	return b.String()
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, artifactPerm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
