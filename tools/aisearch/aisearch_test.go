package aisearch_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/infohub/llmutils"
	"github.com/effective-security/infohub/pkg/azsearch"
	"github.com/effective-security/infohub/tools"
	"github.com/effective-security/infohub/tools/aisearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) CreateEmbedding(_ context.Context, _ string) ([]float32, error) {
	return s.vector, s.err
}

type stubSearcher struct {
	docs []azsearch.Document
	err  error

	gotQuery string
	gotTop   int
}

func (s *stubSearcher) Search(_ context.Context, query string, _ []float32, top int) ([]azsearch.Document, error) {
	s.gotQuery = query
	s.gotTop = top
	return s.docs, s.err
}

func Test_Tool(t *testing.T) {
	ctx := context.Background()

	searcher := &stubSearcher{
		docs: []azsearch.Document{
			{Content: "All refunds are processed in 5 days.", Score: 0.9, RerankerScore: 2.5},
			{Content: "Low quality match.", Score: 0.3, RerankerScore: 0.4},
		},
	}
	tool, err := aisearch.New(&stubEmbedder{vector: []float32{0.1}}, searcher)
	require.NoError(t, err)

	assert.Equal(t, aisearch.ToolName, tool.Name())
	assert.Contains(t, tool.Description(), "Azure AI Search")

	params := llmutils.ToJSONIndent(tool.Parameters())
	expParams := `{
	"properties": {
		"query": {
			"type": "string",
			"title": "Query",
			"description": "The search query string."
		},
		"top": {
			"type": "integer",
			"title": "Top",
			"description": "Maximum number of documents to return."
		}
	},
	"type": "object",
	"required": [
		"query"
	]
}`
	assert.Equal(t, expParams, params)

	res, err := tool.Run(ctx, &aisearch.SearchRequest{Query: "refund policy"})
	require.NoError(t, err)
	assert.Equal(t, "refund policy", searcher.gotQuery)
	assert.Equal(t, aisearch.DefaultTop, searcher.gotTop)

	// the low reranker score result is filtered out
	require.Len(t, res.Results, 1)
	assert.Equal(t, "All refunds are processed in 5 days.", res.Results[0].Content)
	assert.Equal(t, 0.9, res.Results[0].Score)

	exp := `Source 1
Content: All refunds are processed in 5 days.
@search.score: 0.9
@search.rerankerScore: 2.5
`
	assert.Equal(t, exp, res.String())

	out, err := tool.Call(ctx, `{"query":"refund policy"}`)
	require.NoError(t, err)
	assert.Equal(t, `{"results":[{"content":"All refunds are processed in 5 days.","score":0.9,"reranker_score":2.5}]}`, out)
}

func Test_Tool_TopOverride(t *testing.T) {
	searcher := &stubSearcher{}
	tool, err := aisearch.New(&stubEmbedder{vector: []float32{0.1}}, searcher)
	require.NoError(t, err)

	_, err = tool.Run(context.Background(), &aisearch.SearchRequest{Query: "q", Top: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, searcher.gotTop)
}

func Test_Tool_Errors(t *testing.T) {
	ctx := context.Background()

	tool, err := aisearch.New(&stubEmbedder{vector: []float32{0.1}}, &stubSearcher{err: errors.New("connection timed out")})
	require.NoError(t, err)

	_, err = tool.Run(ctx, &aisearch.SearchRequest{Query: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote search unavailable")

	_, err = tool.Run(ctx, &aisearch.SearchRequest{})
	assert.EqualError(t, err, "invalid request: empty query")

	tool2, err := aisearch.New(&stubEmbedder{err: errors.New("embeddings down")}, &stubSearcher{})
	require.NoError(t, err)
	_, err = tool2.Run(ctx, &aisearch.SearchRequest{Query: "q"})
	assert.Contains(t, err.Error(), "remote search unavailable")

	_, err = tool.Call(ctx, "not json")
	assert.True(t, errors.Is(err, tools.ErrFailedUnmarshalInput))

	_, err = aisearch.New(nil, nil)
	assert.EqualError(t, err, "embedder and searcher are required")
}
