// Package calculator provides a simple arithmetic tool, mostly useful to
// verify the gateway wiring end to end.
package calculator

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/infohub/llmutils"
	"github.com/effective-security/infohub/schema"
	"github.com/effective-security/infohub/tools"
	"github.com/invopop/jsonschema"
)

const ToolName = "add"

// AddRequest represents the tool input.
type AddRequest struct {
	A float64 `json:"a" jsonschema:"title=A,description=First number to add."`
	B float64 `json:"b" jsonschema:"title=B,description=Second number to add."`
}

// AddResult represents the tool output.
type AddResult struct {
	Sum float64 `json:"sum"`
}

// Tool adds two numbers together.
type Tool struct {
	name        string
	description string
	params      *jsonschema.Schema
}

var _ tools.Tool[AddRequest, AddResult] = (*Tool)(nil)

func New() (*Tool, error) {
	sc, err := schema.New(reflect.TypeOf(AddRequest{}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &Tool{
		name:        ToolName,
		description: "Add two numbers together.",
		params:      sc.Parameters,
	}, nil
}

func (t *Tool) Name() string {
	return t.name
}

func (t *Tool) Description() string {
	return t.description
}

func (t *Tool) Parameters() *jsonschema.Schema {
	return t.params
}

func (t *Tool) Run(_ context.Context, req *AddRequest) (*AddResult, error) {
	return &AddResult{Sum: req.A + req.B}, nil
}

func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	var req AddRequest
	if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &req); err != nil {
		return "", tools.ErrFailedUnmarshalInput
	}
	out, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	return llmutils.ToJSON(out.Sum), nil
}
