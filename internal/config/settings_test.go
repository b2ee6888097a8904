package config

import (
	"testing"
	"time"

	"github.com/luxweb/luxrag-go/internal/provider"
)

// settingsEnvKeys is every env var FromEnv reads; tests clear them so the
// host environment cannot leak in.
var settingsEnvKeys = []string{
	"LUXRAG_CORPUS_DIR", "LUXRAG_INDEX_BACKEND", "LUXRAG_INDEX_PATH",
	"QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION", "QDRANT_API_KEY", "QDRANT_TLS",
	"LUXRAG_CHUNK_SIZE", "LUXRAG_CHUNK_OVERLAP",
	"LUXRAG_EMBEDDING_PROVIDER", "LUXRAG_EMBEDDING_MODEL", "LUXRAG_EMBEDDING_BASE_URL",
	"LUXRAG_EMBEDDING_API_KEY", "LUXRAG_EMBEDDING_DIMENSIONS", "LUXRAG_EMBEDDING_BATCH",
	"LUXRAG_EMBEDDING_TIMEOUT", "LUXRAG_EMBEDDING_RETRIES",
	"LUXRAG_TOP_K", "LUXRAG_MIN_SIMILARITY", "LUXRAG_RERANK",
	"MODEL_PROVIDER", "LUXRAG_GENERATE_TIMEOUT", "MODEL_MAX_TOKENS", "MODEL_TEMPERATURE",
	"OLLAMA_HOST", "OLLAMA_MODEL",
	"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
	"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT", "AZURE_OPENAI_API_VERSION",
	"GOOGLE_API_KEY", "GEMINI_MODEL",
	"ARK_API_KEY", "ARK_MODEL", "ARK_BASE_URL",
	"LUXRAG_MAX_CONTEXT_TOKENS", "LUXRAG_HOST", "LUXRAG_PORT", "LUXRAG_API_KEY",
	"LUXRAG_INGEST_WORKERS", "LUXRAG_HISTORY_DB",
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t, settingsEnvKeys...)

	s := FromEnv()

	if s.CorpusDir != DefaultCorpusDir {
		t.Errorf("CorpusDir = %q, want %q", s.CorpusDir, DefaultCorpusDir)
	}
	if s.Index.Backend != "sqlite" || s.Index.Path != DefaultIndexPath {
		t.Errorf("Index = %+v, want sqlite backend at the default path", s.Index)
	}
	if s.Index.Qdrant.Host != "localhost" || s.Index.Qdrant.Port != 6334 || s.Index.Qdrant.Collection != "lux-kb" {
		t.Errorf("Qdrant = %+v, want localhost:6334/lux-kb", s.Index.Qdrant)
	}
	if s.EmbeddingBatch != 32 {
		t.Errorf("EmbeddingBatch = %d, want 32", s.EmbeddingBatch)
	}
	if s.GenerateTimeout != 120*time.Second {
		t.Errorf("GenerateTimeout = %v, want 120s", s.GenerateTimeout)
	}
	if s.Server.Host != "127.0.0.1" || s.Server.Port != 8080 {
		t.Errorf("Server = %+v, want 127.0.0.1:8080", s.Server)
	}
	if s.IngestWorkers != 4 {
		t.Errorf("IngestWorkers = %d, want 4", s.IngestWorkers)
	}
	if s.Embedding.Provider != "ollama" {
		t.Errorf("Embedding.Provider = %q, want ollama", s.Embedding.Provider)
	}
	if s.Provider.Backend != provider.BackendOllama {
		t.Errorf("Provider.Backend = %q, want ollama", s.Provider.Backend)
	}
	if s.Provider.Ollama.Model != "gemma3" {
		t.Errorf("Provider.Ollama.Model = %q, want gemma3", s.Provider.Ollama.Model)
	}
	if s.Provider.Tuning.MaxTokens != 4096 {
		t.Errorf("Tuning.MaxTokens = %d, want 4096", s.Provider.Tuning.MaxTokens)
	}
	if s.HistoryDisabled() {
		t.Error("HistoryDisabled() = true with no env set")
	}
}

func TestFromEnv_ReadsOverrides(t *testing.T) {
	clearEnv(t, settingsEnvKeys...)
	t.Setenv("LUXRAG_TOP_K", "7")
	t.Setenv("LUXRAG_MIN_SIMILARITY", "0.4")
	t.Setenv("LUXRAG_RERANK", "true")
	t.Setenv("LUXRAG_GENERATE_TIMEOUT", "45s")
	t.Setenv("LUXRAG_EMBEDDING_TIMEOUT", "10s")
	t.Setenv("LUXRAG_EMBEDDING_RETRIES", "5")
	t.Setenv("LUXRAG_HISTORY_DB", "disabled")

	s := FromEnv()

	if s.Retrieval.TopK != 7 {
		t.Errorf("Retrieval.TopK = %d, want 7", s.Retrieval.TopK)
	}
	if s.Retrieval.MinSimilarity != 0.4 {
		t.Errorf("Retrieval.MinSimilarity = %v, want 0.4", s.Retrieval.MinSimilarity)
	}
	if !s.Retrieval.Rerank {
		t.Error("Retrieval.Rerank = false, want true")
	}
	if s.GenerateTimeout != 45*time.Second {
		t.Errorf("GenerateTimeout = %v, want 45s", s.GenerateTimeout)
	}
	if s.Embedding.Timeout != 10*time.Second {
		t.Errorf("Embedding.Timeout = %v, want 10s", s.Embedding.Timeout)
	}
	if s.Embedding.Retry.Attempts != 5 {
		t.Errorf("Embedding.Retry.Attempts = %d, want 5", s.Embedding.Retry.Attempts)
	}
	if !s.HistoryDisabled() {
		t.Error("HistoryDisabled() = false, want true")
	}
}

func TestFromEnv_EmbeddingCredentialFallback(t *testing.T) {
	clearEnv(t, settingsEnvKeys...)
	t.Setenv("LUXRAG_EMBEDDING_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	s := FromEnv()
	if s.Embedding.APIKey != "sk-test" {
		t.Errorf("Embedding.APIKey = %q, want the generation provider's key", s.Embedding.APIKey)
	}

	// An embedding-specific key wins over the shared one.
	t.Setenv("LUXRAG_EMBEDDING_API_KEY", "sk-embed")
	s = FromEnv()
	if s.Embedding.APIKey != "sk-embed" {
		t.Errorf("Embedding.APIKey = %q, want the embedding-specific key", s.Embedding.APIKey)
	}
}

func TestFromEnv_EmbeddingAzureEndpointFallback(t *testing.T) {
	clearEnv(t, settingsEnvKeys...)
	t.Setenv("LUXRAG_EMBEDDING_PROVIDER", "azure")
	t.Setenv("AZURE_OPENAI_API_KEY", "az-key")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://my-resource.openai.azure.com")

	s := FromEnv()
	if s.Embedding.APIKey != "az-key" {
		t.Errorf("Embedding.APIKey = %q, want the azure key", s.Embedding.APIKey)
	}
	if s.Embedding.Endpoint != "https://my-resource.openai.azure.com" {
		t.Errorf("Embedding.Endpoint = %q, want the azure endpoint", s.Embedding.Endpoint)
	}
}
