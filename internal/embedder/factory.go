package embedder

import (
	"fmt"
	"time"

	"github.com/luxweb/luxrag-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ; set embedding.dimensions to override.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536

	defaultOllamaHost    = "http://localhost:11434"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultAzureVersion  = "2025-04-01-preview"
)

// Config selects and configures an embedding backend. It is typically filled
// from the embedding section of the application config.
type Config struct {
	// Provider is the backend name: ollama (default), openai, or azure.
	Provider string

	// Model overrides the backend's default embedding model.
	Model string

	// Endpoint overrides the backend's default URL (Ollama host, OpenAI base
	// URL, or Azure resource endpoint).
	Endpoint string

	// APIKey authenticates against openai and azure backends.
	APIKey string

	// Dimensions overrides the default vector length for the resolved model.
	Dimensions int

	// APIVersion is the Azure OpenAI API version (azure only).
	APIVersion string

	// Timeout bounds each embedding HTTP request. Zero keeps the backend's
	// default.
	Timeout time.Duration

	// Retry tunes the transient-failure retry wrapped around every backend.
	Retry RetryConfig
}

// withDefaults returns a copy of cfg with backend defaults applied.
func (c Config) withDefaults() Config {
	if c.Provider == "" {
		c.Provider = "ollama"
	}
	switch c.Provider {
	case "ollama":
		if c.Model == "" {
			c.Model = defaultOllamaModel
		}
		if c.Endpoint == "" {
			c.Endpoint = defaultOllamaHost
		}
		if c.Dimensions == 0 {
			c.Dimensions = defaultOllamaDimensions
		}
	case "openai", "azure":
		if c.Model == "" {
			c.Model = defaultOpenAIModel
		}
		if c.Provider == "openai" && c.Endpoint == "" {
			c.Endpoint = defaultOpenAIBaseURL
		}
		if c.Dimensions == 0 {
			c.Dimensions = defaultOpenAIDimensions
		}
		if c.Provider == "azure" && c.APIVersion == "" {
			c.APIVersion = defaultAzureVersion
		}
	}
	return c
}

// Identity returns the stable model identity string recorded in the index
// header, e.g. "ollama/nomic-embed-text". Vectors from different identities
// never mix in one index.
func Identity(cfg *Config) string {
	r := cfg.withDefaults()
	return r.Provider + "/" + r.Model
}

// Dimensions returns the vector length the resolved configuration produces.
// Callers that pre-size a vector store should use this rather than hardcoding
// a value.
func Dimensions(cfg *Config) int {
	return cfg.withDefaults().Dimensions
}

// New constructs a rag.Embedder for the configured backend, wrapped with
// bounded retry for transient failures.
func New(cfg *Config) (rag.Embedder, error) {
	r := cfg.withDefaults()

	var inner rag.Embedder
	switch r.Provider {
	case "ollama":
		inner = NewOllamaEmbedder(&OllamaConfig{
			Host:    r.Endpoint,
			Model:   r.Model,
			Timeout: r.Timeout,
		})

	case "openai":
		if r.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai requires an API key (embedding.api_key or OPENAI_API_KEY)")
		}
		inner = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    r.Endpoint,
			APIKey:     r.APIKey,
			Model:      r.Model,
			Dimensions: r.Dimensions,
			Timeout:    r.Timeout,
		})

	case "azure":
		if r.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure requires an API key (embedding.api_key or AZURE_OPENAI_API_KEY)")
		}
		if r.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires an endpoint (embedding.endpoint or AZURE_OPENAI_ENDPOINT)")
		}
		inner = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    r.Endpoint + "/openai",
			APIKey:     r.APIKey,
			Model:      r.Model,
			Dimensions: r.Dimensions,
			Azure:      true,
			APIVersion: r.APIVersion,
			Timeout:    r.Timeout,
		})

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q (valid values: ollama, openai, azure)", r.Provider)
	}

	return WithRetry(inner, r.Retry), nil
}
