// Package config loads the server configuration from YAML, with environment
// variable expansion and struct validation.
package config

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/infohub/pkg/azopenai"
	"github.com/effective-security/infohub/pkg/azsearch"
	"github.com/effective-security/x/configloader"
	"github.com/go-playground/validator/v10"
)

// Transport names accepted in ServerConfig.Transport.
const (
	TransportHTTP = "http"
	TransportSSE  = "sse"
)

const defaultAddr = ":8000"

// ServerConfig selects the listen address and serving transport.
type ServerConfig struct {
	// Addr is the host:port to listen on.
	Addr string `json:"addr" yaml:"addr" validate:"required"`
	// Transport is "http" or "sse".
	Transport string `json:"transport" yaml:"transport" validate:"oneof=http sse"`
}

// Config is the root configuration.
type Config struct {
	Server ServerConfig `json:"server" yaml:"server"`

	// AzureOpenAI configures the embeddings collaborator. The search tool is
	// registered only when both Azure sections are present.
	AzureOpenAI *azopenai.Config `json:"azure_openai,omitempty" yaml:"azure_openai,omitempty"`
	// AzureSearch configures the search index collaborator.
	AzureSearch *azsearch.Config `json:"azure_search,omitempty" yaml:"azure_search,omitempty"`
}

// SearchEnabled reports whether the search tool can be constructed.
func (c *Config) SearchEnabled() bool {
	return c.AzureOpenAI != nil && c.AzureSearch != nil
}

// Load reads the configuration from file, expanding ${ENV} references. An
// empty file name yields the defaults.
func Load(file string) (*Config, error) {
	cfg := new(Config)
	if file != "" {
		if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
			return nil, err
		}
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultAddr
	}
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = TransportHTTP
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.WithMessage(err, "invalid configuration")
	}
	return nil
}
