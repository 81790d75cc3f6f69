package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/refjudge/refjudge/internal/classify"
	"github.com/refjudge/refjudge/internal/reference"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Consolidate the reference tool's raw records into cached verdicts",
	Long: `Reads the heuristic reference tool's raw CSV, collapses the per-commit
records into one canonical pure/floss verdict each (a single
behavior-changing flag outranks any number of purity flags), and caches
the verdicts in the local database for comparison against the judge.`,
	RunE: runConsolidate,
}

func init() {
	consolidateCmd.Flags().Bool("restart", false, "drop previously cached reference verdicts first")
	rootCmd.AddCommand(consolidateCmd)
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	restart, _ := cmd.Flags().GetBool("restart")

	if cfg.ReferenceFile == "" {
		return fmt.Errorf("reference_file is not set in the config")
	}

	records, err := reference.LoadCSV(cfg.ReferenceFile)
	if err != nil {
		return err
	}

	database, store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	mode := classify.ModeResume
	if restart {
		mode = classify.ModeRestart
	}

	verdicts, err := reference.Sync(context.Background(), store, records, mode)
	if err != nil {
		return err
	}

	st := reference.Summarize(records, verdicts)
	fmt.Printf("Consolidated %d records into %d verdicts\n", st.Records, st.Commits)
	fmt.Printf("  Pure:      %d\n", st.Pure)
	fmt.Printf("  Floss:     %d\n", st.Floss)
	fmt.Printf("  Unknown:   %d\n", st.Unknown)
	fmt.Printf("  Conflicts: %d\n", st.Conflicts)
	return nil
}
