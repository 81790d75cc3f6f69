package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/refjudge/refjudge/internal/classify"
	"github.com/refjudge/refjudge/internal/compare"
	"github.com/refjudge/refjudge/internal/config"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare the judge's verdicts against the reference tool",
	Long: `Joins the cached verdicts of both oracles on commit hash, prints the
agreement rate and confusion matrix, and writes markdown and JSON
reports under the workdir.`,
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	referenceVerdicts, err := store.AllVerdicts(ctx, classify.SourceReference)
	if err != nil {
		return err
	}
	judgeVerdicts, err := store.AllVerdicts(ctx, classify.SourceJudge)
	if err != nil {
		return err
	}

	report := compare.Compare(referenceVerdicts, judgeVerdicts)
	report.Model = cfg.Model
	compare.RenderText(os.Stdout, report)

	if err := os.MkdirAll(cfg.ReportsDir(), 0o755); err != nil {
		return fmt.Errorf("creating reports dir: %w", err)
	}
	slug := config.ModelSlug(cfg.Model)
	mdPath, err := compare.WriteMarkdown(cfg.ReportsDir(), slug, report)
	if err != nil {
		return err
	}
	jsonPath, err := compare.WriteJSON(cfg.ReportsDir(), slug, report)
	if err != nil {
		return err
	}

	fmt.Printf("\nReports written:\n  %s\n  %s\n", mdPath, jsonPath)
	return nil
}
