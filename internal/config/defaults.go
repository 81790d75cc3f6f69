package config

import (
	"path/filepath"
	"strings"
)

// ModelPreset describes the default judge and embedding models for a provider.
type ModelPreset struct {
	Model          string
	EmbeddingModel string
}

// modelPresets maps each provider to its recommended model pair.
var modelPresets = map[ProviderType]ModelPreset{
	ProviderAnthropic: {Model: "claude-sonnet-4-5-20250929", EmbeddingModel: "text-embedding-3-small"},
	ProviderOpenAI:    {Model: "gpt-4o", EmbeddingModel: "text-embedding-3-small"},
	ProviderGoogle:    {Model: "gemini-3-pro-preview", EmbeddingModel: "text-embedding-004"},
	ProviderOllama:    {Model: "qwen2.5-coder:7b", EmbeddingModel: "nomic-embed-text"},
}

// GetPreset returns the model preset for the given provider, falling back to
// the Ollama preset for unknown providers.
func GetPreset(provider ProviderType) ModelPreset {
	if preset, ok := modelPresets[provider]; ok {
		return preset
	}
	return modelPresets[ProviderOllama]
}

// DefaultConfig returns a Config with sensible defaults: a local Ollama judge
// and the pacing the batch loop is calibrated for.
func DefaultConfig() *Config {
	preset := GetPreset(ProviderOllama)
	return &Config{
		Provider:          ProviderOllama,
		Model:             preset.Model,
		EmbeddingProvider: ProviderOllama,
		EmbeddingModel:    preset.EmbeddingModel,
		Workdir:           ".refjudge",
		CommitsFile:       "commits.csv",
		ReferenceFile:     "reference.csv",
		Temperature:       0.1,
		Batch: BatchConfig{
			Size:               25,
			CommitPauseSeconds: 1,
			PauseSeconds:       5,
		},
		Server: ServerConfig{
			Port: 8844,
		},
	}
}

// Workdir layout helpers. Everything a run produces lives under Workdir.

// DatabasePath is the SQLite file holding verdicts, failures, and runs.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Workdir, "refjudge.db")
}

// ReposDir holds the local git clones.
func (c *Config) ReposDir() string {
	return filepath.Join(c.Workdir, "repos")
}

// DiffsDir holds staged diff artifacts for oversized diffs.
func (c *Config) DiffsDir() string {
	return filepath.Join(c.Workdir, "diffs")
}

// ReportsDir holds generated comparison reports.
func (c *Config) ReportsDir() string {
	return filepath.Join(c.Workdir, "reports")
}

// SimilarityDir holds the persisted justification embedding store.
func (c *Config) SimilarityDir() string {
	return filepath.Join(c.Workdir, "similarity")
}

// ModelSlug turns a model name into a filesystem- and collection-safe label,
// so per-model artifacts stay isolated ("qwen2.5-coder:7b" → "qwen2.5-coder_7b").
func ModelSlug(model string) string {
	return strings.ReplaceAll(strings.ReplaceAll(model, ":", "_"), "/", "_")
}
