// Package azopenai provides a minimal client for the Azure OpenAI
// embeddings endpoint. The gateway only needs query vectors, so the full SDK
// surface is not required.
package azopenai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"
)

const defaultAPIVersion = "2024-06-01"

// Config describes the embeddings deployment to call.
type Config struct {
	// Endpoint is the Azure OpenAI resource endpoint, e.g. https://myresource.openai.azure.com
	Endpoint string `json:"endpoint" yaml:"endpoint" validate:"required,url"`
	// APIKey is passed through as the api-key header.
	APIKey string `json:"api_key" yaml:"api_key" validate:"required"`
	// APIVersion of the service API, e.g. 2024-06-01.
	APIVersion string `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	// EmbeddingsDeployment is the name of the deployed embeddings model.
	EmbeddingsDeployment string `json:"embeddings_deployment" yaml:"embeddings_deployment" validate:"required"`
}

// Client calls the Azure OpenAI embeddings API.
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

type embeddingPayload struct {
	Input []string `json:"input"`
}

type embeddingResponsePayload struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type errorMessage struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CreateEmbedding returns the vector representation of the given input.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	payloadBytes, err := json.Marshal(&embeddingPayload{Input: []string{input}})
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

	var response embeddingResponsePayload
	if err := json.NewDecoder(r.Body).Decode(&response); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}

	if len(response.Data) == 0 {
		return nil, errors.New("no embedding returned")
	}

	return response.Data[0].Embedding, nil
}

func (c *Client) buildURL() string {
	return fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s",
		c.cfg.Endpoint,
		url.PathEscape(c.cfg.EmbeddingsDeployment),
		url.QueryEscape(c.cfg.APIVersion),
	)
}
