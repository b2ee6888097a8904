// Package provider selects and constructs the generation model backend at
// runtime. Supported backends: Ollama, OpenAI (including OpenAI-compatible
// endpoints such as Groq), Azure OpenAI, Google Gemini, and Volcano Ark.
package provider

import (
	"fmt"
	"strings"
)

// Backend enumerates the supported generation providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API or an OpenAI-compatible endpoint.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendArk selects the Volcano Engine Ark model runtime.
	BackendArk Backend = "ark"
)

// ProviderOllama configures a local Ollama backend.
type ProviderOllama struct {
	// Host is the Ollama base URL. Defaults to http://localhost:11434.
	Host string
	// Model is the model name to run (e.g. "gemma3").
	Model string
}

// ProviderOpenAI configures the OpenAI backend.
type ProviderOpenAI struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint for OpenAI-compatible services
	// (Groq, OpenRouter). Empty means api.openai.com.
	BaseURL string
}

// ProviderAzureOpenAI configures the Azure OpenAI backend.
type ProviderAzureOpenAI struct {
	APIKey     string
	Endpoint   string
	Deployment string
	// APIVersion is the Azure OpenAI REST API version (e.g. "2024-02-01").
	APIVersion string
}

// ProviderGemini configures the Google Gemini backend.
type ProviderGemini struct {
	APIKey string
	Model  string
}

// ProviderArk configures the Volcano Engine Ark backend.
type ProviderArk struct {
	APIKey string
	Model  string
	// BaseURL overrides the Ark endpoint. Empty uses the SDK default.
	BaseURL string
}

// SharedTuning holds generation parameters common to all backends.
type SharedTuning struct {
	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int
	// Temperature controls response randomness (0.0 to 1.0).
	Temperature float32
}

// Config holds the full provider configuration. Backend selects which of the
// per-provider sections is consulted; the others are ignored.
type Config struct {
	Backend     Backend
	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Gemini      ProviderGemini
	Ark         ProviderArk
	Tuning      SharedTuning
}

// Validate checks that the selected backend has the credentials and model
// identity it needs. Error messages name the environment variable that
// populates the missing field so startup failures are actionable.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOllama:
		if c.Ollama.Model == "" {
			return fmt.Errorf("provider: OLLAMA_MODEL is required for the ollama backend")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("provider: OPENAI_API_KEY is required for the openai backend")
		}
		if c.OpenAI.Model == "" {
			return fmt.Errorf("provider: OPENAI_MODEL is required for the openai backend")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_API_KEY is required for the azure backend")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_ENDPOINT is required for the azure backend")
		}
		if c.AzureOpenAI.Deployment == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_DEPLOYMENT is required for the azure backend")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("provider: GOOGLE_API_KEY is required for the gemini backend")
		}
		if c.Gemini.Model == "" {
			return fmt.Errorf("provider: GEMINI_MODEL is required for the gemini backend")
		}
	case BackendArk:
		if c.Ark.APIKey == "" {
			return fmt.Errorf("provider: ARK_API_KEY is required for the ark backend")
		}
		if c.Ark.Model == "" {
			return fmt.Errorf("provider: ARK_MODEL is required for the ark backend")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q (valid values: ollama, openai, azure, gemini, ark)", c.Backend)
	}
	return nil
}

// azureReasoningPrefixes matches Azure deployment names for o-series and
// codex-class models, which reject the temperature parameter.
var azureReasoningPrefixes = []string{"o1", "o3", "o4", "codex"}

// isAzureReasoningModel reports whether the deployment name looks like a
// reasoning-class model. Prefix match, case-insensitive.
func isAzureReasoningModel(deployment string) bool {
	d := strings.ToLower(deployment)
	for _, p := range azureReasoningPrefixes {
		if strings.HasPrefix(d, p) {
			return true
		}
	}
	return false
}
