package cmd

import (
	"context"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/refjudge/refjudge/internal/config"
	"github.com/refjudge/refjudge/internal/judge"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the Ollama models on the configured host and pick one",
	Long: `Lists the models the Ollama host has pulled and lets you pick the one
the judge should use. The choice is written back to the config file.
Only meaningful for the ollama provider; cloud model names are set
directly in the config.`,
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().Bool("list", false, "only list models, do not prompt")
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	listOnly, _ := cmd.Flags().GetBool("list")

	if cfg.Provider != config.ProviderOllama {
		return fmt.Errorf("model discovery only works with the ollama provider (configured: %s)", cfg.Provider)
	}

	host := cfg.Host
	if host == "" {
		host = "http://localhost:11434"
	}

	names, err := judge.ListOllamaModels(context.Background(), host)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Printf("No models pulled on %s. Run `ollama pull <model>` first.\n", host)
		return nil
	}

	if listOnly {
		for _, n := range names {
			marker := " "
			if n == cfg.Model {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, n)
		}
		return nil
	}

	prompt := promptui.Select{
		Label: "Judge model",
		Items: names,
		Size:  12,
	}
	_, chosen, err := prompt.Run()
	if err != nil {
		return fmt.Errorf("model selection cancelled: %w", err)
	}

	cfg.Model = chosen
	if err := cfg.Save(cfgFile); err != nil {
		return err
	}
	fmt.Printf("Judge model set to %s in %s\n", chosen, cfgFile)
	return nil
}
