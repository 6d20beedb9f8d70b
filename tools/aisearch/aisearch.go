// Package aisearch provides a tool that retrieves documents from an
// Azure AI Search index using hybrid vector and semantic search.
package aisearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/infohub/llmutils"
	"github.com/effective-security/infohub/pkg/azsearch"
	"github.com/effective-security/infohub/schema"
	"github.com/effective-security/infohub/tools"
	"github.com/invopop/jsonschema"
)

const ToolName = "ai_search"

const (
	// DefaultTop is the number of documents requested when the caller does
	// not ask for a specific count.
	DefaultTop = 5
	// MinRerankerScore filters out results the semantic ranker considers
	// poor matches.
	MinRerankerScore = 1.5
)

// Embedder converts a query into its vector representation.
type Embedder interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// Searcher issues one query against the search index.
type Searcher interface {
	Search(ctx context.Context, query string, vector []float32, top int) ([]azsearch.Document, error)
}

// SearchRequest represents the tool input.
type SearchRequest struct {
	Query string `json:"query" jsonschema:"title=Query,description=The search query string."`
	Top   int    `json:"top,omitempty" jsonschema:"title=Top,description=Maximum number of documents to return."`
}

// SearchResult represents the tool output.
type SearchResult struct {
	Results []azsearch.Document `json:"results"`
}

// Tool retrieves documents from a search index. It performs no retries;
// retry policy belongs to the collaborator's client.
type Tool struct {
	name        string
	description string
	params      *jsonschema.Schema

	embedder Embedder
	searcher Searcher
}

var _ tools.Tool[SearchRequest, SearchResult] = (*Tool)(nil)

func New(embedder Embedder, searcher Searcher) (*Tool, error) {
	if embedder == nil || searcher == nil {
		return nil, errors.New("embedder and searcher are required")
	}

	sc, err := schema.New(reflect.TypeOf(SearchRequest{}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &Tool{
		name:        ToolName,
		description: "Retrieve documents from an Azure AI Search index using hybrid search.",
		params:      sc.Parameters,
		embedder:    embedder,
		searcher:    searcher,
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

func (t *Tool) Run(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req.Query == "" {
		return nil, errors.New("invalid request: empty query")
	}

	top := req.Top
	if top <= 0 {
		top = DefaultTop
	}

	vector, err := t.embedder.CreateEmbedding(ctx, req.Query)
	if err != nil {
		return nil, errors.Wrap(err, "remote search unavailable")
	}

	docs, err := t.searcher.Search(ctx, req.Query, vector, top)
	if err != nil {
		return nil, errors.Wrap(err, "remote search unavailable")
	}

	res := &SearchResult{}
	for _, doc := range docs {
		if doc.RerankerScore >= MinRerankerScore {
			res.Results = append(res.Results, doc)
		}
	}

	return res, nil
}

func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	var req SearchRequest
	if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &req); err != nil {
		return "", tools.ErrFailedUnmarshalInput
	}
	out, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	bs, err := json.Marshal(out)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal output")
	}
	return string(bs), nil
}

func (r *SearchResult) String() string {
	var buf bytes.Buffer
	for i, doc := range r.Results {
		fmt.Fprintf(&buf, "Source %d\n", i+1)
		fmt.Fprintf(&buf, "Content: %s\n", doc.Content)
		fmt.Fprintf(&buf, "@search.score: %v\n", doc.Score)
		fmt.Fprintf(&buf, "@search.rerankerScore: %v\n", doc.RerankerScore)
	}
	return buf.String()
}
