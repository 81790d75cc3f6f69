package cmd

import (
	"fmt"
	"os"

	"github.com/refjudge/refjudge/internal/classify"
	"github.com/refjudge/refjudge/internal/config"
	"github.com/refjudge/refjudge/internal/db"
	"github.com/refjudge/refjudge/internal/embeddings"
	"github.com/refjudge/refjudge/internal/judge"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `refjudge init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openStore opens the verdict database under the configured workdir. The
// caller owns the returned DB handle and must close it.
func openStore(cfg *config.Config) (*db.DB, *classify.Store, error) {
	if err := os.MkdirAll(cfg.Workdir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating workdir: %w", err)
	}
	database, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening verdict database: %w", err)
	}
	return database, classify.NewStore(database, cfg.Model), nil
}

// createJudgeFromConfig builds the judge provider, wrapped in a rate limiter
// when the config caps requests per minute.
func createJudgeFromConfig(cfg *config.Config) (judge.Provider, error) {
	provider, err := judge.NewProvider(string(cfg.Provider), cfg.Model, cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("creating judge provider: %w", err)
	}
	if cfg.RequestsPerMinute > 0 {
		provider = judge.NewRateLimitedProvider(provider, cfg.RequestsPerMinute)
	}
	return provider, nil
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
// Shared by the similar command and anything else that touches the vector
// store.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = config.GetPreset(provider).EmbeddingModel
	}

	switch provider {
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(model, cfg.Host), nil
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(model)), nil
	default:
		// Providers without native embeddings fall back to OpenAI.
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required (used for embeddings when provider is %s)", provider)
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(model)), nil
	}
}
