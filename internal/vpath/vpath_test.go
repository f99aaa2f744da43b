package vpath

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToVirtualPath(t *testing.T) {
	root := filepath.Join("project", ".gql", "types")

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "top level gql",
			source: "query.gql",
			want:   filepath.Join(root, "query.d.gql.ts"),
		},
		{
			name:   "nested graphql",
			source: filepath.Join("src", "routes", "query.graphql"),
			want:   filepath.Join(root, "src", "routes", "query.d.graphql.ts"),
		},
		{
			name:   "dotted stem keeps only last extension",
			source: filepath.Join("src", "starship.page.gql"),
			want:   filepath.Join(root, "src", "starship.page.d.gql.ts"),
		},
		{
			name:   "dot segments are normalized",
			source: filepath.Join("src", ".", "lib", "..", "query.gql"),
			want:   filepath.Join(root, "src", "query.d.gql.ts"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToVirtualPath(tt.source, root)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToVirtualPath_MissingExtension(t *testing.T) {
	for _, source := range []string{"query", filepath.Join("src", "query"), "query.", ""} {
		t.Run(source, func(t *testing.T) {
			_, err := ToVirtualPath(source, "root")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPath))

			var pathErr *InvalidPathError
			require.ErrorAs(t, err, &pathErr)
			assert.Equal(t, source, pathErr.Path)
		})
	}
}

func TestToVirtualPath_DeterministicAndInjective(t *testing.T) {
	root := "virtual"
	sources := []string{
		"query.gql",
		"query.graphql",
		"query.d.gql",
		"query.gql.gql",
		filepath.Join("a", "query.gql"),
		filepath.Join("a", "b", "query.gql"),
		filepath.Join("a.d", "query.gql"),
		"a.gql",
		"b.gql",
		"query.ts",
	}

	seen := make(map[string]string, len(sources))
	for _, source := range sources {
		first, err := ToVirtualPath(source, root)
		require.NoError(t, err)
		second, err := ToVirtualPath(source, root)
		require.NoError(t, err)
		assert.Equal(t, first, second, "mapping must be stable for %s", source)

		if other, dup := seen[first]; dup {
			t.Fatalf("%s and %s both map to %s", other, source, first)
		}
		seen[first] = source
	}
}

func TestFromVirtualPath_RoundTrip(t *testing.T) {
	root := filepath.Join("out", "types")
	for _, source := range []string{
		"query.gql",
		filepath.Join("src", "routes", "[id]", "query.graphql"),
		filepath.Join("src", "page.d.gql"),
	} {
		t.Run(source, func(t *testing.T) {
			virtual, err := ToVirtualPath(source, root)
			require.NoError(t, err)

			back, err := FromVirtualPath(virtual, root)
			require.NoError(t, err)
			assert.Equal(t, source, back)
		})
	}
}

func TestFromVirtualPath_Invalid(t *testing.T) {
	root := filepath.Join("out", "types")
	tests := []struct {
		name string
		path string
	}{
		{name: "outside root", path: filepath.Join("elsewhere", "query.d.gql.ts")},
		{name: "not typescript", path: filepath.Join(root, "query.gql")},
		{name: "missing infix", path: filepath.Join(root, "query.gql.ts")},
		{name: "missing source extension", path: filepath.Join(root, "query.ts")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromVirtualPath(tt.path, root)
			assert.ErrorIs(t, err, ErrInvalidPath)
		})
	}
}

func TestImportSpecifier(t *testing.T) {
	root := filepath.Join("base", ".gql")
	schema := filepath.Join(root, "schema.d.ts")

	tests := []struct {
		name    string
		fromDir string
		want    string
	}{
		{name: "same directory", fromDir: root, want: "./schema.d.ts"},
		{name: "types root", fromDir: filepath.Join(root, "types"), want: "../schema.d.ts"},
		{
			name:    "nested",
			fromDir: filepath.Join(root, "types", "src", "routes"),
			want:    "../../../schema.d.ts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ImportSpecifier(tt.fromDir, schema))
		})
	}
}

func TestContains(t *testing.T) {
	base := filepath.Join(string(filepath.Separator), "home", "dev", "project")

	tests := []struct {
		name   string
		parent string
		path   string
		want   bool
	}{
		{name: "same directory", parent: base, path: base, want: true},
		{name: "child", parent: base, path: filepath.Join(base, "src", "a.gql"), want: true},
		{name: "unclean child", parent: base + string(filepath.Separator), path: filepath.Join(base, "src", "..", "src"), want: true},
		{name: "ancestor", parent: filepath.Dir(base), path: base, want: true},
		{name: "filesystem root", parent: string(filepath.Separator), path: base, want: true},
		{name: "sibling", parent: filepath.Join(base, ".gql"), path: filepath.Join(base, "src"), want: false},
		{name: "parent of parent", parent: filepath.Join(base, "src"), path: base, want: false},
		{name: "dot-dot prefixed name", parent: base, path: filepath.Join(base, "..cache"), want: true},
		{name: "similar prefix", parent: base, path: base + "-old", want: false},
		{name: "unrelated relative and absolute", parent: "src", path: base, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Contains(tt.parent, tt.path))
		})
	}
}
