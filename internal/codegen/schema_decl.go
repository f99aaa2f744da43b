package codegen

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

const schemaPreamble = `export type Maybe<T> = T | null;
export type InputMaybe<T> = Maybe<T>;
`

var namedTypeExport = regexp.MustCompile(`(?m)export type (\w+)`)

// SchemaDeclaration renders the TypeScript declaration shared by every query
// artifact. Types are emitted in name order so repeated runs are byte stable.
func SchemaDeclaration(schema *Schema, scalars map[string]string) string {
	var b strings.Builder
	b.WriteString(schemaPreamble)
	writeScalars(&b, schema, scalars)

	for _, def := range schema.definitions() {
		switch def.Kind {
		case ast.Object, ast.Interface:
			writeObjectType(&b, schema, def, !schema.isRootType(def) && def.Kind == ast.Object)
			writeArgsTypes(&b, schema, def)
		case ast.InputObject:
			writeInputType(&b, schema, def)
		case ast.Enum:
			writeEnumType(&b, def)
		case ast.Union:
			writeUnionType(&b, def)
		}
	}
	return b.String()
}

// ExtractNamedTypes returns the names of every exported type alias in a
// generated declaration, in declaration order.
func ExtractNamedTypes(declaration string) []string {
	matches := namedTypeExport.FindAllStringSubmatch(declaration, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

func writeScalars(b *strings.Builder, schema *Schema, scalars map[string]string) {
	b.WriteString("/** All built-in and custom scalars, mapped to their actual values */\n")
	b.WriteString("export type Scalars = {\n")
	for _, s := range builtinScalars {
		fmt.Fprintf(b, "  %s: %s;\n", s.name, scalarType(s.name, scalars))
	}

	var custom []string
	for _, def := range schema.definitions() {
		if def.Kind == ast.Scalar {
			custom = append(custom, def.Name)
		}
	}
	sort.Strings(custom)
	for _, name := range custom {
		fmt.Fprintf(b, "  %s: %s;\n", name, scalarType(name, scalars))
	}
	b.WriteString("};\n")
}

func writeDescription(b *strings.Builder, desc, indent string) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return
	}
	lines := strings.Split(desc, "\n")
	if len(lines) == 1 {
		fmt.Fprintf(b, "%s/** %s */\n", indent, escapeComment(lines[0]))
		return
	}
	fmt.Fprintf(b, "%s/**\n", indent)
	for _, line := range lines {
		fmt.Fprintf(b, "%s * %s\n", indent, escapeComment(strings.TrimRight(line, " \t")))
	}
	fmt.Fprintf(b, "%s */\n", indent)
}

func escapeComment(s string) string {
	return strings.ReplaceAll(s, "*/", "*\\/")
}

func writeObjectType(b *strings.Builder, schema *Schema, def *ast.Definition, typename bool) {
	b.WriteString("\n")
	writeDescription(b, def.Description, "")
	fmt.Fprintf(b, "export type %s = {\n", def.Name)
	if typename {
		fmt.Fprintf(b, "  __typename?: %q;\n", def.Name)
	}
	for _, f := range def.Fields {
		if strings.HasPrefix(f.Name, "__") {
			continue
		}
		writeDescription(b, f.Description, "  ")
		optional := ""
		if !f.Type.NonNull {
			optional = "?"
		}
		fmt.Fprintf(b, "  %s%s: %s;\n", f.Name, optional, schemaTypeRef(schema, f.Type, "Maybe"))
	}
	b.WriteString("};\n")
}

func writeArgsTypes(b *strings.Builder, schema *Schema, def *ast.Definition) {
	for _, f := range def.Fields {
		if len(f.Arguments) == 0 || strings.HasPrefix(f.Name, "__") {
			continue
		}
		fmt.Fprintf(b, "\nexport type %s%sArgs = {\n", def.Name, upperFirst(f.Name))
		for _, arg := range f.Arguments {
			optional := ""
			if !arg.Type.NonNull || arg.DefaultValue != nil {
				optional = "?"
			}
			fmt.Fprintf(b, "  %s%s: %s;\n", arg.Name, optional, schemaTypeRef(schema, arg.Type, "InputMaybe"))
		}
		b.WriteString("};\n")
	}
}

func writeInputType(b *strings.Builder, schema *Schema, def *ast.Definition) {
	b.WriteString("\n")
	writeDescription(b, def.Description, "")
	fmt.Fprintf(b, "export type %s = {\n", def.Name)
	for _, f := range def.Fields {
		writeDescription(b, f.Description, "  ")
		optional := ""
		if !f.Type.NonNull || f.DefaultValue != nil {
			optional = "?"
		}
		fmt.Fprintf(b, "  %s%s: %s;\n", f.Name, optional, schemaTypeRef(schema, f.Type, "InputMaybe"))
	}
	b.WriteString("};\n")
}

func writeEnumType(b *strings.Builder, def *ast.Definition) {
	b.WriteString("\n")
	writeDescription(b, def.Description, "")
	if len(def.EnumValues) == 0 {
		fmt.Fprintf(b, "export type %s = never;\n", def.Name)
		return
	}
	values := make([]string, 0, len(def.EnumValues))
	for _, v := range def.EnumValues {
		values = append(values, fmt.Sprintf("%q", v.Name))
	}
	fmt.Fprintf(b, "export type %s = %s;\n", def.Name, strings.Join(values, " | "))
}

func writeUnionType(b *strings.Builder, def *ast.Definition) {
	b.WriteString("\n")
	writeDescription(b, def.Description, "")
	members := "never"
	if len(def.Types) > 0 {
		members = strings.Join(def.Types, " | ")
	}
	fmt.Fprintf(b, "export type %s = %s;\n", def.Name, members)
}

// schemaTypeRef renders a field type in schema declarations, where scalars
// are referenced through the Scalars map and nullability through wrapper.
func schemaTypeRef(schema *Schema, t *ast.Type, wrapper string) string {
	var inner string
	if t.Elem != nil {
		inner = "Array<" + schemaTypeRef(schema, t.Elem, wrapper) + ">"
	} else {
		inner = t.NamedType
		if schema.isScalar(t.NamedType) {
			inner = fmt.Sprintf("Scalars[%q]", t.NamedType)
		}
	}
	if t.NonNull {
		return inner
	}
	return wrapper + "<" + inner + ">"
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
