package calculator_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/infohub/llmutils"
	"github.com/effective-security/infohub/tools"
	"github.com/effective-security/infohub/tools/calculator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Tool(t *testing.T) {
	ctx := context.Background()

	tool, err := calculator.New()
	require.NoError(t, err)

	assert.Equal(t, calculator.ToolName, tool.Name())
	assert.Contains(t, tool.Description(), "Add two numbers")

	params := llmutils.ToJSONIndent(tool.Parameters())
	expParams := `{
	"properties": {
		"a": {
			"type": "number",
			"title": "A",
			"description": "First number to add."
		},
		"b": {
			"type": "number",
			"title": "B",
			"description": "Second number to add."
		}
	},
	"type": "object",
	"required": [
		"a",
		"b"
	]
}`
	assert.Equal(t, expParams, params)

	_, err = tool.Call(ctx, "plain string")
	assert.True(t, errors.Is(err, tools.ErrFailedUnmarshalInput))

	out, err := tool.Call(ctx, `{"a":2,"b":3}`)
	require.NoError(t, err)
	assert.Equal(t, "5", out)

	out, err = tool.Call(ctx, `{"a":-1,"b":1}`)
	require.NoError(t, err)
	assert.Equal(t, "0", out)
}

func Test_Run(t *testing.T) {
	tool, err := calculator.New()
	require.NoError(t, err)

	res, err := tool.Run(context.Background(), &calculator.AddRequest{A: 2, B: 3})
	require.NoError(t, err)
	assert.Equal(t, float64(5), res.Sum)

	res, err = tool.Run(context.Background(), &calculator.AddRequest{A: -1, B: 1})
	require.NoError(t, err)
	assert.Equal(t, float64(0), res.Sum)
}
