package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .refjudge.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to refjudge! Let's configure your analysis.")
	fmt.Println()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select judge provider",
		Items: []string{"ollama", "anthropic", "openai", "google"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)
	preset := GetPreset(provider)

	// 2. Judge model.
	modelPrompt := promptui.Prompt{
		Label:   "Judge model",
		Default: preset.Model,
	}
	model, err := modelPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	// 3. Commit dataset.
	commitsPrompt := promptui.Prompt{
		Label:   "Commit dataset CSV (project,commit1,commit2)",
		Default: "commits.csv",
	}
	commitsFile, err := commitsPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("commits file: %w", err)
	}

	// 4. Reference dataset.
	referencePrompt := promptui.Prompt{
		Label:   "Reference classification CSV (semicolon-delimited)",
		Default: "reference.csv",
	}
	referenceFile, err := referencePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("reference file: %w", err)
	}

	// 5. Working directory.
	workdirPrompt := promptui.Prompt{
		Label:   "Working directory (clones, database, reports)",
		Default: ".refjudge",
	}
	workdir, err := workdirPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("workdir: %w", err)
	}

	// 6. Per-project cap.
	capPrompt := promptui.Prompt{
		Label:   "Commits per project (0 = all)",
		Default: "0",
		Validate: func(s string) error {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil || n < 0 {
				return fmt.Errorf("enter a non-negative number")
			}
			return nil
		},
	}
	capStr, err := capPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("per-project cap: %w", err)
	}
	perProject, _ := strconv.Atoi(strings.TrimSpace(capStr))

	cfg := DefaultConfig()
	cfg.Provider = provider
	cfg.Model = model
	cfg.EmbeddingProvider = embeddingProviderFor(provider)
	cfg.EmbeddingModel = preset.EmbeddingModel
	cfg.CommitsFile = commitsFile
	cfg.ReferenceFile = referenceFile
	cfg.Workdir = workdir
	cfg.PerProjectLimit = perProject

	// Check for API key.
	envVar := APIKeyEnvVar(provider)
	if envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment before running refjudge analyze.\n", envVar)
	}

	configPath := ".refjudge.yml"
	if err := cfg.Save(configPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", configPath)
	return cfg, nil
}

// embeddingProviderFor returns the default embedding provider for a given
// judge provider. Cloud providers without native embeddings use OpenAI.
func embeddingProviderFor(p ProviderType) ProviderType {
	if p == ProviderOllama {
		return ProviderOllama
	}
	return ProviderOpenAI
}
