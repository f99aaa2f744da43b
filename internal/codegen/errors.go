package codegen

import (
	"errors"
	"strings"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Sentinel errors for the failure classes of this package.
var (
	// ErrCodegen indicates a query document could not be turned into an artifact.
	ErrCodegen = errors.New("typedgql: codegen failed")
	// ErrSchema indicates the schema document could not be read or validated.
	ErrSchema = errors.New("typedgql: invalid schema")
)

// CodegenError reports a query document that is not valid against the schema,
// or a generator failure while producing an artifact for it.
type CodegenError struct {
	// Messages are the underlying parser, validator or compiler messages.
	Messages []string
	Cause    error
}

// Error implements the error interface.
func (e *CodegenError) Error() string {
	var b strings.Builder
	b.WriteString("typedgql: codegen error")
	if len(e.Messages) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Messages, "; "))
	} else if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *CodegenError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrCodegen.
func (e *CodegenError) Is(target error) bool {
	return target == ErrCodegen
}

func newCodegenError(list gqlerror.List) *CodegenError {
	msgs := make([]string, 0, len(list))
	for _, e := range list {
		msgs = append(msgs, e.Error())
	}
	return &CodegenError{Messages: msgs, Cause: list}
}

// SchemaError reports a schema file that cannot be loaded.
type SchemaError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("typedgql: schema error")
	if e.Path != "" {
		b.WriteString(" in ")
		b.WriteString(e.Path)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *SchemaError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrSchema.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}
