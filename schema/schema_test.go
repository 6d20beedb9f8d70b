package schema_test

import (
	"reflect"
	"testing"

	"github.com/effective-security/infohub/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchArgs struct {
	Query string `json:"query" jsonschema:"title=Query,description=The search query string."`
	Top   int    `json:"top,omitempty" jsonschema:"title=Top,description=Maximum number of results."`
}

type addArgs struct {
	A float64 `json:"a" jsonschema:"description=First operand."`
	B float64 `json:"b" jsonschema:"description=Second operand."`
}

func TestSchema(t *testing.T) {
	s, err := schema.New(reflect.TypeOf(searchArgs{}))
	require.NoError(t, err)
	require.NotNil(t, s.Parameters)

	exp := `{
	"properties": {
		"query": {
			"type": "string",
			"title": "Query",
			"description": "The search query string."
		},
		"top": {
			"type": "integer",
			"title": "Top",
			"description": "Maximum number of results."
		}
	},
	"type": "object",
	"required": [
		"query"
	]
}`
	assert.Equal(t, exp, s.String())

	// the cache returns the same instance
	s2, err := schema.New(reflect.TypeOf(searchArgs{}))
	require.NoError(t, err)
	assert.Same(t, s, s2)
}

func TestSchemaRequired(t *testing.T) {
	s, err := schema.New(reflect.TypeOf(addArgs{}))
	require.NoError(t, err)

	assert.Equal(t, "object", s.Parameters.Type)
	assert.Equal(t, []string{"a", "b"}, s.Parameters.Required)

	prop, ok := s.Parameters.Properties.Get("a")
	require.True(t, ok)
	assert.Equal(t, "number", prop.Type)
}
