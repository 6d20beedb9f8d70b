package azsearch_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/effective-security/infohub/pkg/azsearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "testkey", r.Header.Get("api-key"))
		assert.Equal(t, "/indexes('itsupportindex')/docs/search", r.URL.Path)
		assert.Equal(t, "2024-07-01", r.URL.Query().Get("api-version"))

		var req map[string]any
		err := json.NewDecoder(r.Body).Decode(&req)
		require.NoError(t, err)

		assert.Nil(t, req["search"])
		assert.Equal(t, "semantic", req["queryType"])
		assert.Equal(t, "refund policy", req["semanticQuery"])
		assert.Equal(t, float64(5), req["top"])

		vq := req["vectorQueries"].([]any)[0].(map[string]any)
		assert.Equal(t, "vector", vq["kind"])
		assert.Equal(t, "text_vector", vq["fields"])
		assert.Equal(t, true, vq["exhaustive"])

		_, _ = w.Write([]byte(`{"value":[
			{"chunk":"All refunds are processed in 5 days.","@search.score":0.9,"@search.rerankerScore":2.5},
			{"chunk":"Unrelated content.","@search.score":0.2,"@search.rerankerScore":0.4}
		]}`))
	}))
	defer server.Close()

	client := azsearch.NewClient(azsearch.Config{
		Endpoint:              server.URL,
		APIKey:                "testkey",
		Index:                 "itsupportindex",
		VectorField:           "text_vector",
		ContentField:          "chunk",
		SemanticConfiguration: "itsupportindex-semantic-configuration",
	}).WithHTTPClient(server.Client())

	docs, err := client.Search(context.Background(), "refund policy", []float32{0.1, 0.2}, 5)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "All refunds are processed in 5 days.", docs[0].Content)
	assert.Equal(t, 0.9, docs[0].Score)
	assert.Equal(t, 2.5, docs[0].RerankerScore)
	assert.Equal(t, 0.4, docs[1].RerankerScore)
}

func Test_Search_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"access denied"}}`))
	}))
	defer server.Close()

	client := azsearch.NewClient(azsearch.Config{
		Endpoint:     server.URL,
		Index:        "idx",
		VectorField:  "v",
		ContentField: "chunk",
	}).WithHTTPClient(server.Client())

	_, err := client.Search(context.Background(), "q", []float32{0.1}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "access denied")
}
