package config

import (
	"os"
	"strconv"
	"time"

	"github.com/luxweb/luxrag-go/internal/embedder"
	"github.com/luxweb/luxrag-go/internal/provider"
)

// Default values applied when neither YAML nor env provide a setting.
const (
	DefaultCorpusDir = "./data"
	DefaultIndexPath = "./data/vector_db/lux-kb.db"

	defaultQdrantHost       = "localhost"
	defaultQdrantPort       = 6334
	defaultQdrantCollection = "lux-kb"

	defaultEmbeddingBatch  = 32
	defaultGenerateTimeout = 120 * time.Second
	defaultServerHost      = "127.0.0.1"
	defaultServerPort      = 8080
	defaultIngestWorkers   = 4
)

// Settings is the resolved runtime configuration, read from the environment
// after Load has layered the YAML file under it.
type Settings struct {
	// CorpusDir is the source document directory.
	CorpusDir string

	// Index selects and configures the vector index backend.
	Index IndexSettings

	// Chunking holds the splitter settings. Zero values defer to the
	// chunker's own defaults.
	Chunking ChunkingSettings

	// Embedding configures the embedding backend.
	Embedding embedder.Config

	// EmbeddingBatch is the number of chunks per embedding request.
	EmbeddingBatch int

	// Retrieval holds similarity search settings. Zero values defer to the
	// retriever's own defaults.
	Retrieval RetrievalSettings

	// Provider configures the generation backend.
	Provider provider.Config

	// GenerateTimeout bounds each generation request.
	GenerateTimeout time.Duration

	// MaxContextTokens is the prompt token budget. Zero defers to the budget
	// package default.
	MaxContextTokens int

	// Server holds the HTTP server settings.
	Server ServerSettings

	// IngestWorkers is the ingestion concurrency.
	IngestWorkers int

	// HistoryDB is the answer history database path. Empty selects the
	// default location; "disabled" turns history off.
	HistoryDB string
}

// IndexSettings selects and configures the vector index backend.
type IndexSettings struct {
	// Backend is "sqlite" or "qdrant".
	Backend string
	// Path is the SQLite index file (sqlite backend).
	Path string
	// Qdrant holds the remote index connection settings (qdrant backend).
	Qdrant QdrantSettings
}

// QdrantSettings holds the Qdrant connection settings.
type QdrantSettings struct {
	Host       string
	Port       int
	Collection string
	APIKey     string
	TLS        bool
}

// ChunkingSettings holds the document splitter settings.
type ChunkingSettings struct {
	Size    int
	Overlap int
}

// RetrievalSettings holds the similarity search settings.
type RetrievalSettings struct {
	TopK          int
	MinSimilarity float32
	Rerank        bool
}

// ServerSettings holds the HTTP server settings.
type ServerSettings struct {
	Host   string
	Port   int
	APIKey string
}

// FromEnv resolves the full runtime configuration from the environment,
// applying defaults for anything unset. Call Load first so YAML values have
// been layered in.
func FromEnv() *Settings {
	return &Settings{
		CorpusDir: getEnvOrDefault("LUXRAG_CORPUS_DIR", DefaultCorpusDir),
		Index: IndexSettings{
			Backend: getEnvOrDefault("LUXRAG_INDEX_BACKEND", "sqlite"),
			Path:    getEnvOrDefault("LUXRAG_INDEX_PATH", DefaultIndexPath),
			Qdrant: QdrantSettings{
				Host:       getEnvOrDefault("QDRANT_HOST", defaultQdrantHost),
				Port:       getEnvInt("QDRANT_PORT", defaultQdrantPort),
				Collection: getEnvOrDefault("QDRANT_COLLECTION", defaultQdrantCollection),
				APIKey:     os.Getenv("QDRANT_API_KEY"),
				TLS:        getEnvBool("QDRANT_TLS", false),
			},
		},
		Chunking: ChunkingSettings{
			Size:    getEnvInt("LUXRAG_CHUNK_SIZE", 0),
			Overlap: getEnvInt("LUXRAG_CHUNK_OVERLAP", 0),
		},
		Embedding:      embeddingFromEnv(),
		EmbeddingBatch: getEnvInt("LUXRAG_EMBEDDING_BATCH", defaultEmbeddingBatch),
		Retrieval: RetrievalSettings{
			TopK:          getEnvInt("LUXRAG_TOP_K", 0),
			MinSimilarity: getEnvFloat32("LUXRAG_MIN_SIMILARITY", 0),
			Rerank:        getEnvBool("LUXRAG_RERANK", false),
		},
		Provider:         providerFromEnv(),
		GenerateTimeout:  getEnvDuration("LUXRAG_GENERATE_TIMEOUT", defaultGenerateTimeout),
		MaxContextTokens: getEnvInt("LUXRAG_MAX_CONTEXT_TOKENS", 0),
		Server: ServerSettings{
			Host:   getEnvOrDefault("LUXRAG_HOST", defaultServerHost),
			Port:   getEnvInt("LUXRAG_PORT", defaultServerPort),
			APIKey: os.Getenv("LUXRAG_API_KEY"),
		},
		IngestWorkers: getEnvInt("LUXRAG_INGEST_WORKERS", defaultIngestWorkers),
		HistoryDB:     os.Getenv("LUXRAG_HISTORY_DB"),
	}
}

// HistoryDisabled reports whether answer history persistence is turned off.
func (s *Settings) HistoryDisabled() bool {
	return s.HistoryDB == "disabled"
}

// embeddingFromEnv resolves the embedding backend configuration. Credentials
// and endpoints fall back to the generation provider's env vars so a single
// OPENAI_API_KEY (or OLLAMA_HOST) serves both services.
func embeddingFromEnv() embedder.Config {
	cfg := embedder.Config{
		Provider:   getEnvOrDefault("LUXRAG_EMBEDDING_PROVIDER", "ollama"),
		Model:      os.Getenv("LUXRAG_EMBEDDING_MODEL"),
		Endpoint:   os.Getenv("LUXRAG_EMBEDDING_BASE_URL"),
		APIKey:     os.Getenv("LUXRAG_EMBEDDING_API_KEY"),
		Dimensions: getEnvInt("LUXRAG_EMBEDDING_DIMENSIONS", 0),
		APIVersion: os.Getenv("AZURE_OPENAI_API_VERSION"),
		Timeout:    getEnvDuration("LUXRAG_EMBEDDING_TIMEOUT", 0),
		Retry: embedder.RetryConfig{
			Attempts: getEnvInt("LUXRAG_EMBEDDING_RETRIES", 0),
		},
	}

	switch cfg.Provider {
	case "ollama":
		if cfg.Endpoint == "" {
			cfg.Endpoint = os.Getenv("OLLAMA_HOST")
		}
	case "openai":
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "azure":
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
		}
	}
	return cfg
}

// providerFromEnv resolves the generation backend configuration.
//
// Env vars read:
//
//	Shared:  MODEL_PROVIDER (default: ollama), MODEL_MAX_TOKENS (default: 4096),
//	         MODEL_TEMPERATURE (default: 0.2)
//	Ollama:  OLLAMA_HOST (default: http://localhost:11434), OLLAMA_MODEL (default: gemma3)
//	OpenAI:  OPENAI_API_KEY, OPENAI_MODEL (default: gpt-4o), OPENAI_BASE_URL
//	Azure:   AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
//	         AZURE_OPENAI_API_VERSION (default: 2024-02-01)
//	Gemini:  GOOGLE_API_KEY, GEMINI_MODEL (default: gemini-1.5-pro)
//	Ark:     ARK_API_KEY, ARK_MODEL, ARK_BASE_URL
func providerFromEnv() provider.Config {
	return provider.Config{
		Backend: provider.Backend(getEnvOrDefault("MODEL_PROVIDER", string(provider.BackendOllama))),
		Ollama: provider.ProviderOllama{
			Host:  getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"),
			Model: getEnvOrDefault("OLLAMA_MODEL", "gemma3"),
		},
		OpenAI: provider.ProviderOpenAI{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		AzureOpenAI: provider.ProviderAzureOpenAI{
			APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
			Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
			Deployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
			APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		},
		Gemini: provider.ProviderGemini{
			APIKey: os.Getenv("GOOGLE_API_KEY"),
			Model:  getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-pro"),
		},
		Ark: provider.ProviderArk{
			APIKey:  os.Getenv("ARK_API_KEY"),
			Model:   os.Getenv("ARK_MODEL"),
			BaseURL: os.Getenv("ARK_BASE_URL"),
		},
		Tuning: provider.SharedTuning{
			MaxTokens:   getEnvInt("MODEL_MAX_TOKENS", 4096),
			Temperature: getEnvFloat32("MODEL_TEMPERATURE", 0.2),
		},
	}
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback when it is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback when it is unset or not a valid integer.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat32 returns the float32 value of the named environment variable,
// or fallback when it is unset or not a valid number.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}

// getEnvBool returns the boolean value of the named environment variable, or
// fallback when it is unset or not a valid boolean.
func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration returns the duration value of the named environment
// variable, or fallback when it is unset or not a valid Go duration.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
