package embedder

import (
	"fmt"
	"log/slog"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding. If the configured embedding
// model matches any of these, a warning is emitted so the operator knows they
// may have misconfigured the pipeline.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate is a pre-flight check on the embedding configuration: it returns
// an error for configurations that are clearly broken (missing credentials)
// and logs a warning when the model looks like a chat model rather than an
// embedding model. Call it at startup so operators get a clear error rather
// than a cryptic failure during the first embed call.
func Validate(cfg *Config, log *slog.Logger) error {
	r := cfg.withDefaults()

	switch r.Provider {
	case "ollama":
		// No credentials required.
	case "openai":
		if r.APIKey == "" {
			return fmt.Errorf("embedder: openai backend configured without an API key; set embedding.api_key or OPENAI_API_KEY")
		}
	case "azure":
		if r.APIKey == "" {
			return fmt.Errorf("embedder: azure backend configured without an API key; set embedding.api_key or AZURE_OPENAI_API_KEY")
		}
		if r.Endpoint == "" {
			return fmt.Errorf("embedder: azure backend configured without an endpoint; set embedding.endpoint or AZURE_OPENAI_ENDPOINT")
		}
	default:
		return fmt.Errorf("embedder: unknown backend %q (valid values: ollama, openai, azure)", r.Provider)
	}

	if looksLikeChatModel(r.Model) {
		log.Warn("configured embedding model looks like a chat model; "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", r.Model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}

	return nil
}
