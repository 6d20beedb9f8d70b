package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/effective-security/infohub/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "infohub.yaml")
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))
	return file
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, config.TransportHTTP, cfg.Server.Transport)
	assert.False(t, cfg.SearchEnabled())
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_SEARCH_KEY", "sk-123")
	t.Setenv("TEST_OPENAI_KEY", "ok-456")

	file := writeConfig(t, `
server:
  addr: ":9090"
  transport: sse
azure_openai:
  endpoint: https://myresource.openai.azure.com
  api_key: ${TEST_OPENAI_KEY}
  embeddings_deployment: text-embedding-3-large
azure_search:
  endpoint: https://myservice.search.windows.net
  api_key: ${TEST_SEARCH_KEY}
  index: enterprise-docs
  vector_field: text_vector
  content_field: chunk
  semantic_configuration: default
`)

	cfg, err := config.Load(file)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, config.TransportSSE, cfg.Server.Transport)
	require.True(t, cfg.SearchEnabled())
	assert.Equal(t, "ok-456", cfg.AzureOpenAI.APIKey)
	assert.Equal(t, "sk-123", cfg.AzureSearch.APIKey)
	assert.Equal(t, "enterprise-docs", cfg.AzureSearch.Index)
	assert.Equal(t, "text_vector", cfg.AzureSearch.VectorField)
}

func TestLoadInvalid(t *testing.T) {
	file := writeConfig(t, `
server:
  addr: ":9090"
  transport: grpc
`)
	_, err := config.Load(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	// search section missing required fields
	file = writeConfig(t, `
azure_openai:
  endpoint: https://myresource.openai.azure.com
  api_key: k
  embeddings_deployment: d
azure_search:
  endpoint: https://myservice.search.windows.net
  api_key: k
`)
	_, err = config.Load(file)
	require.Error(t, err)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
