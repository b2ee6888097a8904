package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
)

// New constructs a chat model from an explicit Config, delegating to the
// appropriate backend constructor. It validates the config first so callers
// get a clear error at startup rather than on the first request.
func New(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendOllama:
		return newOllama(ctx, cfg)
	case BackendOpenAI:
		return newOpenAI(ctx, cfg)
	case BackendAzure:
		return newAzure(ctx, cfg)
	case BackendGemini:
		return newGemini(ctx, cfg)
	case BackendArk:
		return newArk(ctx, cfg)
	default:
		return nil, fmt.Errorf("provider: unknown backend %q (valid values: ollama, openai, azure, gemini, ark)", cfg.Backend)
	}
}

// Identity returns the "backend/model" string recorded alongside answers so
// history entries name the model that produced them.
func Identity(cfg *Config) string {
	switch cfg.Backend {
	case BackendOllama:
		return fmt.Sprintf("%s/%s", cfg.Backend, cfg.Ollama.Model)
	case BackendOpenAI:
		return fmt.Sprintf("%s/%s", cfg.Backend, cfg.OpenAI.Model)
	case BackendAzure:
		return fmt.Sprintf("%s/%s", cfg.Backend, cfg.AzureOpenAI.Deployment)
	case BackendGemini:
		return fmt.Sprintf("%s/%s", cfg.Backend, cfg.Gemini.Model)
	case BackendArk:
		return fmt.Sprintf("%s/%s", cfg.Backend, cfg.Ark.Model)
	default:
		return string(cfg.Backend)
	}
}
