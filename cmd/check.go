package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/refjudge/refjudge/internal/config"
	"github.com/refjudge/refjudge/internal/judge"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that the environment is ready for a judging run",
	Long: `Checks the config, the verdict database, the git binary, and the
input datasets, and pings the judge model with a short test generation.
Run this before a long batch so a broken setup fails fast instead of
burning the first timeout of the run.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	failed := 0
	report := func(name string, err error) {
		if err != nil {
			fmt.Printf("FAIL  %s: %v\n", name, err)
			failed++
			return
		}
		fmt.Printf("ok    %s\n", name)
	}

	cfg, err := loadConfig()
	report("config", err)
	if err != nil {
		return fmt.Errorf("%d check(s) failed", failed)
	}

	_, lookErr := exec.LookPath("git")
	report("git binary", lookErr)

	_, statErr := os.Stat(cfg.CommitsFile)
	report("commit dataset", statErr)
	if cfg.ReferenceFile != "" {
		_, statErr = os.Stat(cfg.ReferenceFile)
		report("reference dataset", statErr)
	}

	database, _, dbErr := openStore(cfg)
	report("verdict database", dbErr)
	if dbErr == nil {
		database.Close()
	}

	if cfg.Provider == config.ProviderOllama {
		host := cfg.Host
		if host == "" {
			host = "http://localhost:11434"
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		status := judge.CheckModel(ctx, host, cfg.Model)
		report(fmt.Sprintf("judge model %s", cfg.Model), status.Err)
	} else {
		key := config.APIKeyEnvVar(cfg.Provider)
		var keyErr error
		if os.Getenv(key) == "" {
			keyErr = fmt.Errorf("%s is not set", key)
		}
		report("judge API key", keyErr)
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	fmt.Println("\nAll checks passed.")
	return nil
}
