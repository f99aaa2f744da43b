package codegen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// Guard is appended to every declaration so the file is always treated as a
// module and nothing leaks into the global scope.
const Guard = "export {};"

const typedDocumentNodeImport = `import type { TypedDocumentNode } from "@graphql-typed-document-node/core";`

// unusedFragmentsRule is tolerated: a query file may hold only fragments
// that are spread from other files.
const unusedFragmentsRule = "NoUnusedFragments"

// parseQuery parses src and validates it against schema. A document holding
// nothing but ignored tokens is accepted as empty.
func parseQuery(src string, schema *Schema) (*ast.QueryDocument, error) {
	if isBlankDocument(src) {
		return &ast.QueryDocument{}, nil
	}
	doc, err := parser.ParseQuery(&ast.Source{Input: src})
	if err != nil {
		var gqlErr *gqlerror.Error
		if errors.As(err, &gqlErr) {
			return nil, newCodegenError(gqlerror.List{gqlErr})
		}
		return nil, &CodegenError{Messages: []string{err.Error()}, Cause: err}
	}

	var errs gqlerror.List
	for _, e := range validator.Validate(schema.ast, doc) {
		if e.Rule != unusedFragmentsRule {
			errs = append(errs, e)
		}
	}
	if len(errs) > 0 {
		return nil, newCodegenError(errs)
	}
	return doc, nil
}

// DeclarationTransform produces the TypeScript declaration for one query
// document: a result type, a variables type and a typed document constant
// per named operation, and a fragment type plus document constant per
// fragment. The output always ends with Guard; a document without
// definitions yields only the guard.
func DeclarationTransform(src string, schema *Schema, scalars map[string]string) (string, error) {
	doc, err := parseQuery(src, schema)
	if err != nil {
		return "", err
	}

	g := &typeRenderer{schema: schema, scalars: scalars, doc: doc}
	var decls []string

	for _, frag := range doc.Fragments {
		typeName := frag.Name + "Fragment"
		cond := schema.ast.Types[frag.TypeCondition]
		shape := g.selectionType(cond, []ast.SelectionSet{frag.SelectionSet}, 0)
		decls = append(decls,
			fmt.Sprintf("export type %s = %s;", typeName, shape),
			fmt.Sprintf("export declare const %s: TypedDocumentNode<%s, unknown>;", frag.Name, typeName),
		)
	}

	for _, op := range doc.Operations {
		if op.Name == "" {
			continue
		}
		resultName := op.Name + operationSuffix(op.Operation)
		variablesName := resultName + "Variables"
		root := schema.rootType(op.Operation)
		decls = append(decls,
			fmt.Sprintf("export type %s = %s;", variablesName, g.variablesType(op.VariableDefinitions)),
			fmt.Sprintf("export type %s = %s;", resultName, g.selectionType(root, []ast.SelectionSet{op.SelectionSet}, 0)),
			fmt.Sprintf("export declare const %s: TypedDocumentNode<%s, %s>;", op.Name, resultName, variablesName),
		)
	}

	if len(decls) == 0 {
		return Guard + "\n", nil
	}

	var b strings.Builder
	b.WriteString(typedDocumentNodeImport)
	b.WriteString("\n")
	for _, d := range decls {
		b.WriteString(d)
		b.WriteString("\n")
	}
	b.WriteString(Guard)
	b.WriteString("\n")
	return b.String(), nil
}

func isBlankDocument(src string) bool {
	for _, line := range strings.Split(src, "\n") {
		line = strings.Trim(line, " \t\r,\ufeff")
		if line != "" && !strings.HasPrefix(line, "#") {
			return false
		}
	}
	return true
}

func operationSuffix(op ast.Operation) string {
	switch op {
	case ast.Mutation:
		return "Mutation"
	case ast.Subscription:
		return "Subscription"
	default:
		return "Query"
	}
}

// typeRenderer renders operation result and variable types. Scalars are
// inlined so per-query declarations only depend on named schema types
// (enums, input objects) and on object type names.
type typeRenderer struct {
	schema  *Schema
	scalars map[string]string
	doc     *ast.QueryDocument
}

// responseField groups every selection of the same response key so
// sub-selections coming from different fragments are merged.
type responseField struct {
	key    string
	def    *ast.FieldDefinition
	name   string
	nested []ast.SelectionSet
}

func (g *typeRenderer) collect(set ast.SelectionSet, concrete *ast.Definition, fields *[]*responseField, index map[string]*responseField) {
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			key := s.Alias
			if key == "" {
				key = s.Name
			}
			rf, ok := index[key]
			if !ok {
				def := s.Definition
				if def == nil {
					def = concrete.Fields.ForName(s.Name)
				}
				rf = &responseField{key: key, def: def, name: s.Name}
				index[key] = rf
				*fields = append(*fields, rf)
			}
			if len(s.SelectionSet) > 0 {
				rf.nested = append(rf.nested, s.SelectionSet)
			}
		case *ast.InlineFragment:
			if g.schema.applies(s.TypeCondition, concrete) {
				g.collect(s.SelectionSet, concrete, fields, index)
			}
		case *ast.FragmentSpread:
			frag := s.Definition
			if frag == nil {
				frag = g.doc.Fragments.ForName(s.Name)
			}
			if frag != nil && g.schema.applies(frag.TypeCondition, concrete) {
				g.collect(frag.SelectionSet, concrete, fields, index)
			}
		}
	}
}

// selectionType renders the shape of sets selected on def. Abstract types
// become a union with one member per possible concrete type.
func (g *typeRenderer) selectionType(def *ast.Definition, sets []ast.SelectionSet, depth int) string {
	if def == nil {
		return defaultScalarType
	}
	if !def.IsAbstractType() {
		return g.objectShape(def, sets, depth)
	}

	possible := g.schema.ast.GetPossibleTypes(def)
	if len(possible) == 0 {
		return "never"
	}
	shapes := make([]string, 0, len(possible))
	for _, p := range possible {
		shapes = append(shapes, g.objectShape(p, sets, depth))
	}
	return strings.Join(shapes, " | ")
}

func (g *typeRenderer) objectShape(def *ast.Definition, sets []ast.SelectionSet, depth int) string {
	var fields []*responseField
	index := make(map[string]*responseField)
	for _, set := range sets {
		g.collect(set, def, &fields, index)
	}

	indent := strings.Repeat("  ", depth+1)
	var b strings.Builder
	b.WriteString("{\n")

	explicitTypename := false
	for _, f := range fields {
		if f.name == "__typename" {
			explicitTypename = true
		}
	}
	if !explicitTypename && !g.schema.isRootType(def) {
		fmt.Fprintf(&b, "%s__typename?: %q;\n", indent, def.Name)
	}

	for _, f := range fields {
		if f.name == "__typename" {
			fmt.Fprintf(&b, "%s%s: %q;\n", indent, f.key, def.Name)
			continue
		}
		if f.def == nil {
			continue
		}
		optional := ""
		if !f.def.Type.NonNull {
			optional = "?"
		}
		fmt.Fprintf(&b, "%s%s%s: %s;\n", indent, f.key, optional, g.outputType(f.def.Type, f.nested, depth+1))
	}

	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString("}")
	return b.String()
}

func (g *typeRenderer) outputType(t *ast.Type, nested []ast.SelectionSet, depth int) string {
	var inner string
	if t.Elem != nil {
		inner = "Array<" + g.outputType(t.Elem, nested, depth) + ">"
	} else {
		def := g.schema.ast.Types[t.NamedType]
		switch {
		case def == nil:
			inner = defaultScalarType
		case def.Kind == ast.Scalar:
			inner = scalarType(def.Name, g.scalars)
		case def.Kind == ast.Enum:
			inner = def.Name
		default:
			inner = g.selectionType(def, nested, depth)
		}
	}
	if t.NonNull {
		return inner
	}
	return inner + " | null"
}

func (g *typeRenderer) variablesType(vars ast.VariableDefinitionList) string {
	if len(vars) == 0 {
		return "{ [key: string]: never }"
	}
	var b strings.Builder
	b.WriteString("{\n")
	for _, v := range vars {
		optional := ""
		if !v.Type.NonNull || v.DefaultValue != nil {
			optional = "?"
		}
		fmt.Fprintf(&b, "  %s%s: %s;\n", v.Variable, optional, g.inputType(v.Type))
	}
	b.WriteString("}")
	return b.String()
}

func (g *typeRenderer) inputType(t *ast.Type) string {
	var inner string
	if t.Elem != nil {
		inner = "Array<" + g.inputType(t.Elem) + ">"
	} else if g.schema.isScalar(t.NamedType) {
		inner = scalarType(t.NamedType, g.scalars)
	} else {
		inner = t.NamedType
	}
	if t.NonNull {
		return inner
	}
	return inner + " | null"
}
