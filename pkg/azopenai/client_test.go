package azopenai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/effective-security/infohub/pkg/azopenai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_CreateEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "testkey", r.Header.Get("api-key"))
		assert.Equal(t, "/openai/deployments/text-embedding-ada-002/embeddings", r.URL.Path)
		assert.Equal(t, "2024-06-01", r.URL.Query().Get("api-version"))

		var req struct {
			Input []string `json:"input"`
		}
		err := json.NewDecoder(r.Body).Decode(&req)
		require.NoError(t, err)
		assert.Equal(t, []string{"refund policy"}, req.Input)

		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3],"index":0}]}`))
	}))
	defer server.Close()

	client := azopenai.NewClient(azopenai.Config{
		Endpoint:             server.URL,
		APIKey:               "testkey",
		EmbeddingsDeployment: "text-embedding-ada-002",
	}).WithHTTPClient(server.Client())

	vector, err := client.CreateEmbedding(context.Background(), "refund policy")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
}

func Test_CreateEmbedding_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer server.Close()

	client := azopenai.NewClient(azopenai.Config{
		Endpoint:             server.URL,
		APIKey:               "bad",
		EmbeddingsDeployment: "ada",
	}).WithHTTPClient(server.Client())

	_, err := client.CreateEmbedding(context.Background(), "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid api key")
}

func Test_CreateEmbedding_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client := azopenai.NewClient(azopenai.Config{
		Endpoint:             server.URL,
		EmbeddingsDeployment: "ada",
	}).WithHTTPClient(server.Client())

	_, err := client.CreateEmbedding(context.Background(), "query")
	assert.EqualError(t, err, "no embedding returned")
}
