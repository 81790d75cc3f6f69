package judge

import (
	"fmt"
	"os"
)

// NewProvider builds a provider of the given type. host overrides the
// endpoint where it makes sense: the Ollama base URL, or the base URL of any
// OpenAI-compatible gateway when providerType is "openai". API keys come from
// the environment so they never land in config files.
func NewProvider(providerType, model, host string) (Provider, error) {
	switch providerType {
	case "ollama":
		if host == "" {
			host = os.Getenv("OLLAMA_HOST")
		}
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaProvider(host, model), nil

	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIProvider(apiKey, model, host), nil

	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		return NewAnthropicProvider(apiKey, model), nil

	case "google":
		apiKey := os.Getenv("GOOGLE_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY environment variable is not set")
		}
		return NewGoogleProvider(apiKey, model), nil

	default:
		return nil, fmt.Errorf("unsupported judge provider: %s", providerType)
	}
}
