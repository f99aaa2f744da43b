// Package vpath maps query source paths onto the mirrored virtual tree that
// holds generated declaration files.
//
// A source file "src/routes/query.gql" maps to
// "<root>/src/routes/query.d.gql.ts". The source extension stays inside the
// artifact name.
package vpath

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	declarationInfix  = ".d"
	declarationSuffix = ".ts"
)

// ErrInvalidPath is the sentinel matched by every *InvalidPathError.
var ErrInvalidPath = errors.New("typedgql: invalid path")

// InvalidPathError reports a path that cannot be mapped.
type InvalidPathError struct {
	Path   string
	Reason string
}

// Error implements the error interface.
func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("typedgql: invalid path %q: %s", e.Path, e.Reason)
}

// Is reports whether target is ErrInvalidPath.
func (e *InvalidPathError) Is(target error) bool {
	return target == ErrInvalidPath
}

// ToVirtualPath returns the declaration path for sourcePath under virtualRoot.
// sourcePath must carry a non-empty extension.
func ToVirtualPath(sourcePath, virtualRoot string) (string, error) {
	ext := filepath.Ext(sourcePath)
	if ext == "" || ext == "." {
		return "", &InvalidPathError{Path: sourcePath, Reason: "missing file extension"}
	}
	stem := strings.TrimSuffix(sourcePath, ext)
	return filepath.Join(virtualRoot, stem+declarationInfix+ext+declarationSuffix), nil
}

// FromVirtualPath recovers the source path (relative, OS separators) that
// produced virtualPath under virtualRoot.
func FromVirtualPath(virtualPath, virtualRoot string) (string, error) {
	rel, err := filepath.Rel(virtualRoot, virtualPath)
	if err != nil {
		return "", &InvalidPathError{Path: virtualPath, Reason: err.Error()}
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &InvalidPathError{Path: virtualPath, Reason: "outside of virtual root"}
	}
	if !strings.HasSuffix(rel, declarationSuffix) {
		return "", &InvalidPathError{Path: virtualPath, Reason: "not a declaration file"}
	}

	trimmed := strings.TrimSuffix(rel, declarationSuffix)
	ext := filepath.Ext(trimmed)
	if ext == "" || ext == "." {
		return "", &InvalidPathError{Path: virtualPath, Reason: "missing source extension"}
	}
	stem := strings.TrimSuffix(trimmed, ext)
	if !strings.HasSuffix(stem, declarationInfix) {
		return "", &InvalidPathError{Path: virtualPath, Reason: "missing declaration infix"}
	}
	return strings.TrimSuffix(stem, declarationInfix) + ext, nil
}

// ImportSpecifier returns a slash separated module specifier that resolves
// target from a module located in fromDir. The result always starts with
// "./" or "../" so bundlers never treat it as a package name.
func ImportSpecifier(fromDir, target string) string {
	rel, err := filepath.Rel(fromDir, target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, "../") && !strings.HasPrefix(rel, "./") {
		rel = "./" + rel
	}
	return rel
}

// Contains reports whether path equals parent or lies below it. Both paths
// are cleaned first; paths that cannot be related never match.
func Contains(parent, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(parent), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
