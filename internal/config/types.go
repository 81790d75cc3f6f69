package config

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
	ProviderGoogle    ProviderType = "google"
	ProviderOllama    ProviderType = "ollama"
)

// Config is the top-level refjudge configuration, corresponding to
// .refjudge.yml.
type Config struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	Host              string       `yaml:"host" koanf:"host"`
	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`
	Workdir           string       `yaml:"workdir" koanf:"workdir"`
	CommitsFile       string       `yaml:"commits_file" koanf:"commits_file"`
	ReferenceFile     string       `yaml:"reference_file" koanf:"reference_file"`
	Projects          []string     `yaml:"projects" koanf:"projects"`
	PerProjectLimit   int          `yaml:"per_project_limit" koanf:"per_project_limit"`
	RequestsPerMinute int          `yaml:"requests_per_minute" koanf:"requests_per_minute"`
	Temperature       float64      `yaml:"temperature" koanf:"temperature"`
	MaxTokens         int          `yaml:"max_tokens" koanf:"max_tokens"`
	Batch             BatchConfig  `yaml:"batch" koanf:"batch"`
	Server            ServerConfig `yaml:"server" koanf:"server"`
}

// BatchConfig paces the judging loop. The judge endpoint is shared and
// rate-limited; pacing is part of the contract with it.
type BatchConfig struct {
	Size               int `yaml:"size" koanf:"size"`
	CommitPauseSeconds int `yaml:"commit_pause_seconds" koanf:"commit_pause_seconds"`
	PauseSeconds       int `yaml:"pause_seconds" koanf:"pause_seconds"`
}

// ServerConfig holds results-server settings.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}
