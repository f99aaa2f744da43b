package writer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/typedgql/internal/codegen"
	"github.com/leapstack-labs/typedgql/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
type Query {
  starship(id: ID!): Starship
  allStarships: [Starship!]!
  pilot(id: ID!): Pilot
}

type Starship {
  id: ID!
  name: String!
  length(unit: LengthUnit = METER): Float
}

type Pilot {
  id: ID!
  name: String!
}

enum LengthUnit {
  METER
  FOOT
}
`

const starshipQuery = `query Starship($id: ID!) {
  starship(id: $id) {
    id
    name
  }
}
`

func setup(t *testing.T) (*Writer, string) {
	t.Helper()
	base := t.TempDir()
	schema, err := codegen.ParseSchema("schema.graphql", testSchema)
	require.NoError(t, err)

	w, err := Initialize(schema, nil, Options{BaseDir: base, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	return w, base
}

func writeSource(t *testing.T, base, rel, content string) {
	t.Helper()
	path := filepath.Join(base, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readArtifact(t *testing.T, w *Writer, rel string) string {
	t.Helper()
	path, err := w.ArtifactPath(rel)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestInitialize(t *testing.T) {
	w, base := setup(t)

	assert.Equal(t, filepath.Join(base, ".gql", "schema.d.ts"), w.SchemaDeclarationPath())
	assert.DirExists(t, filepath.Join(base, ".gql", "types"))

	decl, err := os.ReadFile(w.SchemaDeclarationPath())
	require.NoError(t, err)
	assert.Contains(t, string(decl), "export type Starship = {")
	assert.Contains(t, w.Registry(), "Starship")
	assert.Contains(t, w.Registry(), "QueryStarshipArgs")
	assert.NotContains(t, w.Registry(), "Query", "root types are inlined, never imported")
}

func TestInitialize_ClearsPreviousOutput(t *testing.T) {
	base := t.TempDir()
	stale := filepath.Join(base, ".gql", "types", "old.d.gql.ts")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o644))

	schema, err := codegen.ParseSchema("schema.graphql", testSchema)
	require.NoError(t, err)

	for range 2 {
		_, err = Initialize(schema, nil, Options{BaseDir: base})
		require.NoError(t, err)
	}
	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(base, ".gql", "schema.d.ts"))
}

func TestInitialize_Errors(t *testing.T) {
	t.Run("no schema", func(t *testing.T) {
		_, err := Initialize(nil, nil, Options{BaseDir: t.TempDir()})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInitialization)
	})

	t.Run("output root is a file parent", func(t *testing.T) {
		base := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(base, "blocker"), []byte("x"), 0o644))

		schema, err := codegen.ParseSchema("schema.graphql", testSchema)
		require.NoError(t, err)

		_, err = Initialize(schema, nil, Options{BaseDir: base, VirtualDir: "blocker/.gql"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInitialization)

		var initErr *InitializationError
		require.True(t, errors.As(err, &initErr))
		assert.Equal(t, "output root", initErr.Stage)
	})

}

func TestInitialize_RejectsUnsafeOutputRoot(t *testing.T) {
	schema, err := codegen.ParseSchema("schema.graphql", testSchema)
	require.NoError(t, err)

	tests := []struct {
		name       string
		virtualDir func(base string) string
		protected  []string
	}{
		{name: "base directory", virtualDir: func(string) string { return "." }},
		{name: "parent of base", virtualDir: func(string) string { return ".." }},
		{name: "absolute ancestor", virtualDir: func(base string) string { return filepath.Dir(filepath.Dir(base)) }},
		{name: "absolute base", virtualDir: func(base string) string { return base }},
		{name: "search directory", virtualDir: func(string) string { return "src" }, protected: []string{"src"}},
		{name: "parent of search directory", virtualDir: func(string) string { return "src" }, protected: []string{"src/queries"}},
		{name: "contains schema file", virtualDir: func(string) string { return "api" }, protected: []string{"api/schema.graphql"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := t.TempDir()
			base := filepath.Join(parent, "project")
			keep := filepath.Join(base, "src", "queries", "keep.gql")
			writeSource(t, base, "src/queries/keep.gql", starshipQuery)
			writeSource(t, base, "api/schema.graphql", testSchema)
			sibling := filepath.Join(parent, "sibling.txt")
			require.NoError(t, os.WriteFile(sibling, []byte("x"), 0o644))

			_, err := Initialize(schema, nil, Options{
				BaseDir:    base,
				VirtualDir: tt.virtualDir(base),
				Protected:  tt.protected,
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInitialization)

			var initErr *InitializationError
			require.True(t, errors.As(err, &initErr))
			assert.Equal(t, "output root", initErr.Stage)

			assert.FileExists(t, keep)
			assert.FileExists(t, filepath.Join(base, "api", "schema.graphql"))
			assert.FileExists(t, sibling)
		})
	}

	t.Run("sibling of protected paths is allowed", func(t *testing.T) {
		base := t.TempDir()
		writeSource(t, base, "src/keep.gql", starshipQuery)

		w, err := Initialize(schema, nil, Options{
			BaseDir:    base,
			VirtualDir: "generated/gql",
			Protected:  []string{"src", filepath.Join(base, "schema.graphql")},
		})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(base, "generated", "gql", "schema.d.ts"), w.SchemaDeclarationPath())
		assert.FileExists(t, filepath.Join(base, "src", "keep.gql"))
	})
}

func TestWriteQueryDeclaration_Starship(t *testing.T) {
	w, base := setup(t)
	writeSource(t, base, "src/routes/starship.gql", starshipQuery)

	require.NoError(t, w.WriteQueryDeclaration(context.Background(), "src/routes/starship.gql"))

	path, err := w.ArtifactPath("src/routes/starship.gql")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, ".gql", "types", "src", "routes", "starship.d.gql.ts"), path)

	content := readArtifact(t, w, "src/routes/starship.gql")
	lines := splitLines(content)
	require.NotEmpty(t, lines)
	assert.Equal(t, `import type { Starship } from "../../../schema.d.ts";`, lines[0])
	assert.Contains(t, content, "export declare const Starship: TypedDocumentNode<StarshipQuery, StarshipQueryVariables>;")
	assert.Equal(t, codegen.Guard, lines[len(lines)-1])
}

func TestWriteQueryDeclaration_AbsolutePath(t *testing.T) {
	w, base := setup(t)
	writeSource(t, base, "src/ship.graphql", starshipQuery)

	require.NoError(t, w.WriteQueryDeclaration(context.Background(), filepath.Join(base, "src", "ship.graphql")))
	assert.FileExists(t, filepath.Join(base, ".gql", "types", "src", "ship.d.graphql.ts"))
}

func TestWriteThenRemove(t *testing.T) {
	w, base := setup(t)
	ctx := context.Background()
	writeSource(t, base, "src/query.gql", starshipQuery)

	require.NoError(t, w.WriteQueryDeclaration(ctx, "src/query.gql"))
	path, err := w.ArtifactPath("src/query.gql")
	require.NoError(t, err)
	assert.FileExists(t, path)

	require.NoError(t, w.RemoveQueryDeclaration(ctx, "src/query.gql"))
	assert.NoFileExists(t, path)

	// Removing again is a no-op.
	require.NoError(t, w.RemoveQueryDeclaration(ctx, "src/query.gql"))
}

func TestWriteQueryDeclaration_Overwrite(t *testing.T) {
	w, base := setup(t)
	ctx := context.Background()

	writeSource(t, base, "src/query.gql", starshipQuery)
	require.NoError(t, w.WriteQueryDeclaration(ctx, "src/query.gql"))
	assert.Contains(t, readArtifact(t, w, "src/query.gql"), "StarshipQuery")

	writeSource(t, base, "src/query.gql", `query Pilot($id: ID!) { pilot(id: $id) { name } }`)
	require.NoError(t, w.WriteQueryDeclaration(ctx, "src/query.gql"))

	content := readArtifact(t, w, "src/query.gql")
	assert.Contains(t, content, "PilotQuery")
	assert.NotContains(t, content, "StarshipQuery")
	assert.Contains(t, content, `import type { Pilot } from`)
}

func TestWriteQueryDeclaration_ZeroOperations(t *testing.T) {
	w, base := setup(t)
	writeSource(t, base, "src/empty.gql", "# queries go here\n")

	require.NoError(t, w.WriteQueryDeclaration(context.Background(), "src/empty.gql"))

	content := readArtifact(t, w, "src/empty.gql")
	assert.Equal(t, "import type {} from \"../../schema.d.ts\";\n"+codegen.Guard+"\n", content)
}

func TestWriteQueryDeclaration_InvalidKeepsPrevious(t *testing.T) {
	w, base := setup(t)
	ctx := context.Background()

	writeSource(t, base, "src/query.gql", starshipQuery)
	require.NoError(t, w.WriteQueryDeclaration(ctx, "src/query.gql"))
	before := readArtifact(t, w, "src/query.gql")

	writeSource(t, base, "src/query.gql", "query Broken { starship(id: 1) { missing } }")
	err := w.WriteQueryDeclaration(ctx, "src/query.gql")
	require.Error(t, err)
	assert.ErrorIs(t, err, codegen.ErrCodegen)
	assert.Contains(t, err.Error(), "src/query.gql")

	assert.Equal(t, before, readArtifact(t, w, "src/query.gql"))

	// A later valid event is processed normally.
	writeSource(t, base, "src/other.gql", `query Ships { allStarships { id } }`)
	require.NoError(t, w.WriteQueryDeclaration(ctx, "src/other.gql"))
}

func TestWriteQueryDeclaration_Errors(t *testing.T) {
	w, base := setup(t)
	ctx := context.Background()

	t.Run("missing source", func(t *testing.T) {
		err := w.WriteQueryDeclaration(ctx, "src/missing.gql")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFileSystem)
	})

	t.Run("no extension", func(t *testing.T) {
		writeSource(t, base, "src/noext", starshipQuery)
		err := w.WriteQueryDeclaration(ctx, "src/noext")
		require.Error(t, err)
	})

	t.Run("outside base", func(t *testing.T) {
		err := w.WriteQueryDeclaration(ctx, "../elsewhere.gql")
		require.Error(t, err)
	})

	t.Run("canceled context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, w.WriteQueryDeclaration(canceled, "src/query.gql"), context.Canceled)
	})
}

func TestArtifacts(t *testing.T) {
	w, base := setup(t)
	ctx := context.Background()

	writeSource(t, base, "src/b.gql", starshipQuery)
	writeSource(t, base, "src/nested/a.graphql", starshipQuery)
	require.NoError(t, w.WriteQueryDeclaration(ctx, "src/b.gql"))
	require.NoError(t, w.WriteQueryDeclaration(ctx, "src/nested/a.graphql"))

	sources, err := w.Artifacts()
	require.NoError(t, err)
	assert.Equal(t, []string{"src/b.gql", "src/nested/a.graphql"}, sources)
}

func TestQueryToJS(t *testing.T) {
	w, _ := setup(t)

	js, err := w.QueryToJS(starshipQuery)
	require.NoError(t, err)
	assert.Contains(t, js, "export const Starship")

	_, err = w.QueryToJS("query { nope }")
	assert.ErrorIs(t, err, codegen.ErrCodegen)
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
