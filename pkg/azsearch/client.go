// Package azsearch provides a minimal client for the Azure AI Search query
// API. The service is an opaque collaborator: this client issues a single
// hybrid vector plus semantic query and returns scored documents without
// interpreting the ranking.
package azsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"
)

const (
	defaultAPIVersion = "2024-07-01"

	searchScoreField   = "@search.score"
	rerankerScoreField = "@search.rerankerScore"
)

// Config describes the search index to query.
type Config struct {
	// Endpoint is the search service endpoint, e.g. https://myservice.search.windows.net
	Endpoint string `json:"endpoint" yaml:"endpoint" validate:"required,url"`
	// APIKey is passed through as the api-key header.
	APIKey string `json:"api_key" yaml:"api_key" validate:"required"`
	// Index is the name of the index to query.
	Index string `json:"index" yaml:"index" validate:"required"`
	// APIVersion of the service API, e.g. 2024-07-01.
	APIVersion string `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	// VectorField is the name of the index field holding document vectors.
	VectorField string `json:"vector_field" yaml:"vector_field" validate:"required"`
	// ContentField is the name of the index field holding document text.
	ContentField string `json:"content_field" yaml:"content_field" validate:"required"`
	// SemanticConfiguration is the semantic ranking configuration of the index.
	SemanticConfiguration string `json:"semantic_configuration,omitempty" yaml:"semantic_configuration,omitempty"`
}

// Document is one scored result from the index.
type Document struct {
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	RerankerScore float64 `json:"reranker_score,omitempty"`
}

// Client queries an Azure AI Search index.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	return &Client{
		cfg:        cfg,
		httpClient: http.DefaultClient,
	}
}

func (c *Client) WithHTTPClient(client *http.Client) *Client {
	c.httpClient = client
	return c
}

type vectorQuery struct {
	Kind       string    `json:"kind"`
	Vector     []float32 `json:"vector"`
	Fields     string    `json:"fields"`
	K          int       `json:"k"`
	Exhaustive bool      `json:"exhaustive"`
}

type searchPayload struct {
	Search                *string       `json:"search"`
	VectorQueries         []vectorQuery `json:"vectorQueries"`
	Top                   int           `json:"top"`
	Select                string        `json:"select"`
	QueryType             string        `json:"queryType,omitempty"`
	SemanticConfiguration string        `json:"semanticConfiguration,omitempty"`
	SemanticQuery         string        `json:"semanticQuery,omitempty"`
	Answers               string        `json:"answers,omitempty"`
	Captions              string        `json:"captions,omitempty"`
}

type searchResponsePayload struct {
	Value []map[string]any `json:"value"`
}

type errorMessage struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Search issues one hybrid query: nearest neighbors on the query vector,
// reranked with the index's semantic configuration. It returns up to top
// documents as scored content records.
func (c *Client) Search(ctx context.Context, query string, vector []float32, top int) ([]Document, error) {
	payload := &searchPayload{
		// full-text search is off, the vector query drives recall
		Search: nil,
		VectorQueries: []vectorQuery{{
			Kind:       "vector",
			Vector:     vector,
			Fields:     c.cfg.VectorField,
			K:          top,
			Exhaustive: true,
		}},
		Top:      top,
		Select:   "*",
		Answers:  fmt.Sprintf("extractive|count-%d", top),
		Captions: "extractive|highlight-false",
	}
	if c.cfg.SemanticConfiguration != "" {
		payload.QueryType = "semantic"
		payload.SemanticConfiguration = c.cfg.SemanticConfiguration
		payload.SemanticQuery = query
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(), bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.cfg.APIKey)

	r, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer func() {
		_ = r.Body.Close()
	}()

	if r.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("API returned unexpected status code: %d", r.StatusCode)

		var errResp errorMessage
		if err := json.NewDecoder(r.Body).Decode(&errResp); err != nil {
			return nil, errors.New(msg)
		}
		return nil, errors.Errorf("%s: %s", msg, errResp.Error.Message)
	}

	var response searchResponsePayload
	if err := json.NewDecoder(r.Body).Decode(&response); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}

	docs := make([]Document, 0, len(response.Value))
	for _, raw := range response.Value {
		doc := Document{
			Score:         floatField(raw, searchScoreField),
			RerankerScore: floatField(raw, rerankerScoreField),
		}
		if content, ok := raw[c.cfg.ContentField].(string); ok {
			doc.Content = content
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

func (c *Client) buildURL() string {
	return fmt.Sprintf("%s/indexes('%s')/docs/search?api-version=%s",
		c.cfg.Endpoint,
		url.PathEscape(c.cfg.Index),
		url.QueryEscape(c.cfg.APIVersion),
	)
}

func floatField(raw map[string]any, name string) float64 {
	if v, ok := raw[name].(float64); ok {
		return v
	}
	return 0
}
