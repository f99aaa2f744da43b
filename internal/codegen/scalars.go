package codegen

// builtinScalars lists the GraphQL builtin scalars in the order they are
// declared in the Scalars type.
var builtinScalars = []struct {
	name string
	ts   string
}{
	{"ID", "string"},
	{"String", "string"},
	{"Boolean", "boolean"},
	{"Int", "number"},
	{"Float", "number"},
}

// defaultScalarType is used for custom scalars without a mapping.
const defaultScalarType = "unknown"

// scalarType resolves the TypeScript type for a scalar name. Explicit
// mappings win over builtin defaults.
func scalarType(name string, scalars map[string]string) string {
	if ts, ok := scalars[name]; ok && ts != "" {
		return ts
	}
	for _, b := range builtinScalars {
		if b.name == name {
			return b.ts
		}
	}
	return defaultScalarType
}
