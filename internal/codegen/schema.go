// Package codegen turns GraphQL documents into TypeScript artifacts.
//
// It has no filesystem side effects apart from LoadSchema. A *Schema is
// immutable once loaded and may be shared by concurrent transform calls.
package codegen

import (
	"fmt"
	"os"
	"sort"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// Schema is a parsed and validated GraphQL schema.
type Schema struct {
	name string
	ast  *ast.Schema
}

// ParseSchema parses and validates a schema document. name is used in error
// positions only.
func ParseSchema(name, src string) (*Schema, error) {
	s, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: src})
	if err != nil {
		return nil, &SchemaError{Path: name, Cause: err}
	}
	return &Schema{name: name, ast: s}, nil
}

// LoadSchema reads and parses the schema file at path.
func LoadSchema(path string) (*Schema, error) {
	src, err := os.ReadFile(path) //nolint:gosec // G304: schema path comes from configuration
	if err != nil {
		return nil, &SchemaError{Path: path, Cause: fmt.Errorf("read schema: %w", err)}
	}
	return ParseSchema(path, string(src))
}

// Name returns the source name the schema was parsed from.
func (s *Schema) Name() string {
	return s.name
}

// RootTypeNames returns the names of the query, mutation and subscription
// root types that the schema defines.
func (s *Schema) RootTypeNames() []string {
	var names []string
	for _, def := range []*ast.Definition{s.ast.Query, s.ast.Mutation, s.ast.Subscription} {
		if def != nil {
			names = append(names, def.Name)
		}
	}
	return names
}

// definitions returns the user defined (non builtin) types sorted by name.
func (s *Schema) definitions() []*ast.Definition {
	defs := make([]*ast.Definition, 0, len(s.ast.Types))
	for _, def := range s.ast.Types {
		if def.BuiltIn {
			continue
		}
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// isScalar reports whether name refers to a builtin or custom scalar.
func (s *Schema) isScalar(name string) bool {
	def := s.ast.Types[name]
	return def != nil && def.Kind == ast.Scalar
}

// isRootType reports whether def is one of the operation root types.
func (s *Schema) isRootType(def *ast.Definition) bool {
	return def == s.ast.Query || def == s.ast.Mutation || def == s.ast.Subscription
}

// rootType returns the root definition for an operation kind.
func (s *Schema) rootType(op ast.Operation) *ast.Definition {
	switch op {
	case ast.Mutation:
		return s.ast.Mutation
	case ast.Subscription:
		return s.ast.Subscription
	default:
		return s.ast.Query
	}
}

// applies reports whether a fragment with the given type condition applies
// to the concrete object type.
func (s *Schema) applies(condition string, concrete *ast.Definition) bool {
	if condition == "" || condition == concrete.Name {
		return true
	}
	cond := s.ast.Types[condition]
	if cond == nil || !cond.IsAbstractType() {
		return false
	}
	for _, possible := range s.ast.GetPossibleTypes(cond) {
		if possible.Name == concrete.Name {
			return true
		}
	}
	return false
}
