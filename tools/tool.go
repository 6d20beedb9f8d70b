package tools

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
)

// ErrFailedUnmarshalInput is returned when a tool cannot parse its input.
var ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")

// ITool is a named, schema-described function invocable by a remote caller.
type ITool interface {
	// Name returns the name of the Tool.
	Name() string
	// Description returns the description of the tool, to be used in the catalog.
	// Should not exceed LLM model limit.
	Description() string
	// Parameters returns the parameters schema of the tool.
	Parameters() *jsonschema.Schema

	// Call executes the tool with the given JSON input and returns the result
	// as JSON. If the tool fails to parse the input, it should return
	// ErrFailedUnmarshalInput error.
	Call(context.Context, string) (string, error)
}

type Tool[I any, O any] interface {
	ITool
	Run(context.Context, *I) (*O, error)
}
