// Package config provides YAML-based configuration for luxrag.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. LUXRAG_CONFIG environment variable
//  3. ~/.luxrag/config.yaml
//  4. ./luxrag.yaml
//
// If no file is found the system runs entirely from env vars (backwards compatible).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Corpus configures the source document directory.
	Corpus CorpusConfig `yaml:"corpus"`

	// Index configures the vector index backend.
	Index IndexConfig `yaml:"index"`

	// Chunking configures document splitting.
	Chunking ChunkingConfig `yaml:"chunking"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Retrieval configures similarity search.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Generation configures the LLM chat model provider.
	Generation GenerationConfig `yaml:"generation"`

	// Prompt configures prompt assembly.
	Prompt PromptConfig `yaml:"prompt"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Ingest configures the ingestion pipeline.
	Ingest IngestConfig `yaml:"ingest"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// History configures answer history persistence.
	History HistoryConfig `yaml:"history"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// CorpusConfig holds source document settings.
type CorpusConfig struct {
	// Dir is the corpus root directory holding the source documents.
	Dir string `yaml:"dir"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	// Backend selects the index implementation: sqlite (default) or qdrant.
	Backend string `yaml:"backend"`
	// Path is the SQLite index file (sqlite backend only).
	Path string `yaml:"path"`
	// Qdrant holds remote index settings (qdrant backend only).
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// ChunkingConfig holds document splitting settings.
type ChunkingConfig struct {
	// Size is the maximum chunk length in characters.
	Size int `yaml:"size"`
	// Overlap is the number of characters shared between consecutive chunks.
	Overlap int `yaml:"overlap"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// BaseURL is the embedding API endpoint.
	BaseURL string `yaml:"base_url"`
	// APIKey is the embedding API key. Prefer env var LUXRAG_EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// BatchSize is the number of chunks sent per embedding request.
	BatchSize int `yaml:"batch_size"`
	// Timeout bounds each embedding request (Go duration, e.g. "30s").
	Timeout string `yaml:"timeout"`
	// MaxRetries is the total number of tries per embedding request.
	MaxRetries int `yaml:"max_retries"`
}

// RetrievalConfig holds similarity search settings.
type RetrievalConfig struct {
	// TopK is the number of passages retrieved per query.
	TopK int `yaml:"top_k"`
	// MinSimilarity drops results scoring below this cosine similarity.
	MinSimilarity float32 `yaml:"min_similarity"`
	// Rerank enables the deterministic hybrid re-rank.
	Rerank bool `yaml:"rerank"`
}

// GenerationConfig holds LLM chat model settings.
type GenerationConfig struct {
	// Provider selects the backend: ollama, openai, azure, gemini, ark.
	Provider string `yaml:"provider"`

	// Model is a convenience key: it sets the selected provider's model
	// (for azure, the deployment) without spelling out the nested section.
	Model string `yaml:"model"`

	// Timeout bounds each generation request (Go duration, e.g. "120s").
	Timeout string `yaml:"timeout"`

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`

	// Ollama holds Ollama-specific settings.
	Ollama OllamaConfig `yaml:"ollama"`

	// OpenAI holds OpenAI-specific settings.
	OpenAI OpenAIConfig `yaml:"openai"`

	// Azure holds Azure OpenAI-specific settings.
	Azure AzureConfig `yaml:"azure"`

	// Gemini holds Google Gemini-specific settings.
	Gemini GeminiConfig `yaml:"gemini"`

	// Ark holds Volcano Engine Ark-specific settings.
	Ark ArkConfig `yaml:"ark"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string `yaml:"host"`
	// Model is the Ollama model name.
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the OpenAI model name.
	Model string `yaml:"model"`
	// BaseURL overrides the API base URL for OpenAI-compatible endpoints.
	BaseURL string `yaml:"base_url"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the Azure OpenAI resource endpoint.
	Endpoint string `yaml:"endpoint"`
	// Deployment is the Azure OpenAI deployment name.
	Deployment string `yaml:"deployment"`
	// APIVersion is the Azure OpenAI API version.
	APIVersion string `yaml:"api_version"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the Gemini model name.
	Model string `yaml:"model"`
}

// ArkConfig holds Volcano Engine Ark provider settings.
type ArkConfig struct {
	// APIKey is the Ark API key. Prefer env var ARK_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the Ark endpoint/model identifier.
	Model string `yaml:"model"`
	// BaseURL overrides the Ark API base URL.
	BaseURL string `yaml:"base_url"`
}

// PromptConfig holds prompt assembly settings.
type PromptConfig struct {
	// MaxContextTokens is the estimated token budget for the assembled prompt.
	MaxContextTokens int `yaml:"max_context_tokens"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var LUXRAG_API_KEY.
	APIKey string `yaml:"api_key"`
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	// Workers is the number of documents processed concurrently.
	Workers int `yaml:"workers"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// HistoryConfig holds answer history settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"LUXRAG_CORPUS_DIR", func(c *Config) string { return c.Corpus.Dir }},
	{"LUXRAG_INDEX_BACKEND", func(c *Config) string { return c.Index.Backend }},
	{"LUXRAG_INDEX_PATH", func(c *Config) string { return c.Index.Path }},
	{"QDRANT_HOST", func(c *Config) string { return c.Index.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Index.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Index.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Index.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Index.Qdrant.TLS) }},
	{"LUXRAG_CHUNK_SIZE", func(c *Config) string { return intStr(c.Chunking.Size) }},
	{"LUXRAG_CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Chunking.Overlap) }},
	{"LUXRAG_EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"LUXRAG_EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"LUXRAG_EMBEDDING_BASE_URL", func(c *Config) string { return c.Embedding.BaseURL }},
	{"LUXRAG_EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"LUXRAG_EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"LUXRAG_EMBEDDING_BATCH", func(c *Config) string { return intStr(c.Embedding.BatchSize) }},
	{"LUXRAG_EMBEDDING_TIMEOUT", func(c *Config) string { return c.Embedding.Timeout }},
	{"LUXRAG_EMBEDDING_RETRIES", func(c *Config) string { return intStr(c.Embedding.MaxRetries) }},
	{"LUXRAG_TOP_K", func(c *Config) string { return intStr(c.Retrieval.TopK) }},
	{"LUXRAG_MIN_SIMILARITY", func(c *Config) string { return float32Str(c.Retrieval.MinSimilarity) }},
	{"LUXRAG_RERANK", func(c *Config) string { return boolStr(c.Retrieval.Rerank) }},
	{"MODEL_PROVIDER", func(c *Config) string { return c.Generation.Provider }},
	{"LUXRAG_GENERATE_TIMEOUT", func(c *Config) string { return c.Generation.Timeout }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Generation.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Generation.Temperature) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Generation.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Generation.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Generation.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Generation.OpenAI.Model }},
	{"OPENAI_BASE_URL", func(c *Config) string { return c.Generation.OpenAI.BaseURL }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Generation.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Generation.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Generation.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Generation.Azure.APIVersion }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Generation.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Generation.Gemini.Model }},
	{"ARK_API_KEY", func(c *Config) string { return c.Generation.Ark.APIKey }},
	{"ARK_MODEL", func(c *Config) string { return c.Generation.Ark.Model }},
	{"ARK_BASE_URL", func(c *Config) string { return c.Generation.Ark.BaseURL }},
	{"LUXRAG_MAX_CONTEXT_TOKENS", func(c *Config) string { return intStr(c.Prompt.MaxContextTokens) }},
	{"LUXRAG_HOST", func(c *Config) string { return c.Server.Host }},
	{"LUXRAG_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"LUXRAG_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"LUXRAG_INGEST_WORKERS", func(c *Config) string { return intStr(c.Ingest.Workers) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"LUXRAG_HISTORY_DB", func(c *Config) string { return c.History.DBPath }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}
	applied += applyFlatModel(&cfg)

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// applyFlatModel maps the generation.model convenience key onto the selected
// provider's model env var. It runs after the static mapping so an explicit
// nested section or a pre-set env var still wins.
func applyFlatModel(cfg *Config) int {
	if cfg.Generation.Model == "" {
		return 0
	}
	backend := os.Getenv("MODEL_PROVIDER")
	if backend == "" {
		backend = "ollama"
	}

	var envKey string
	switch backend {
	case "ollama":
		envKey = "OLLAMA_MODEL"
	case "openai":
		envKey = "OPENAI_MODEL"
	case "azure":
		envKey = "AZURE_OPENAI_DEPLOYMENT"
	case "gemini":
		envKey = "GEMINI_MODEL"
	case "ark":
		envKey = "ARK_MODEL"
	default:
		return 0
	}
	if os.Getenv(envKey) != "" {
		return 0
	}
	os.Setenv(envKey, cfg.Generation.Model)
	return 1
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("LUXRAG_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".luxrag", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("luxrag.yaml"); err == nil {
		return "luxrag.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
