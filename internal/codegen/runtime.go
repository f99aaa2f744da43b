package codegen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/vektah/gqlparser/v2/ast"
)

const documentNodeImport = `import type { TypedDocumentNode as DocumentNode } from "@graphql-typed-document-node/core";`

// RuntimeTransform produces a JavaScript module exporting one executable
// document per named operation and per fragment in src. The module is first
// emitted as TypeScript and then compiled with esbuild so it can be loaded
// directly by a bundler or runtime.
func RuntimeTransform(src string, schema *Schema, scalars map[string]string) (string, error) {
	doc, err := parseQuery(src, schema)
	if err != nil {
		return "", err
	}

	ts, err := runtimeModule(doc)
	if err != nil {
		return "", err
	}
	return compileTypeScript(ts)
}

func runtimeModule(doc *ast.QueryDocument) (string, error) {
	var b strings.Builder
	b.WriteString(documentNodeImport)
	b.WriteString("\n")

	for _, frag := range doc.Fragments {
		literal, err := documentLiteral(doc, fragmentNode(frag), frag.SelectionSet)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "export const %s = %s as unknown as DocumentNode<%sFragment, unknown>;\n",
			frag.Name, literal, frag.Name)
	}

	for _, op := range doc.Operations {
		if op.Name == "" {
			continue
		}
		literal, err := documentLiteral(doc, operationNode(op), op.SelectionSet)
		if err != nil {
			return "", err
		}
		resultName := op.Name + operationSuffix(op.Operation)
		fmt.Fprintf(&b, "export const %s = %s as unknown as DocumentNode<%s, %sVariables>;\n",
			op.Name, literal, resultName, resultName)
	}

	b.WriteString(Guard)
	b.WriteString("\n")
	return b.String(), nil
}

// compileTypeScript strips types and down-levels the module with esbuild.
func compileTypeScript(code string) (string, error) {
	result := api.Transform(code, api.TransformOptions{
		Loader:     api.LoaderTS,
		Format:     api.FormatESModule,
		Target:     api.ES2020,
		Sourcefile: "documents.ts",
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			if e.Location != nil {
				msgs = append(msgs, fmt.Sprintf("%d:%d: %s", e.Location.Line, e.Location.Column, e.Text))
			} else {
				msgs = append(msgs, e.Text)
			}
		}
		return "", &CodegenError{Messages: msgs}
	}
	return string(result.Code), nil
}

// documentLiteral renders a graphql-js DocumentNode holding root followed by
// every fragment it transitively spreads, in document order.
func documentLiteral(doc *ast.QueryDocument, root any, set ast.SelectionSet) (string, error) {
	used := make(map[string]bool)
	collectSpreads(doc, set, used)

	definitions := []any{root}
	for _, frag := range doc.Fragments {
		if used[frag.Name] {
			definitions = append(definitions, fragmentNode(frag))
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(documentNode{Kind: "Document", Definitions: definitions}); err != nil {
		return "", &CodegenError{Cause: fmt.Errorf("encode document: %w", err)}
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func collectSpreads(doc *ast.QueryDocument, set ast.SelectionSet, used map[string]bool) {
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			collectSpreads(doc, s.SelectionSet, used)
		case *ast.InlineFragment:
			collectSpreads(doc, s.SelectionSet, used)
		case *ast.FragmentSpread:
			if used[s.Name] {
				continue
			}
			used[s.Name] = true
			if frag := doc.Fragments.ForName(s.Name); frag != nil {
				collectSpreads(doc, frag.SelectionSet, used)
			}
		}
	}
}
