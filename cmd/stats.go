package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/refjudge/refjudge/internal/classify"
	"github.com/refjudge/refjudge/internal/corpus"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus and verdict statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	if ds, err := corpus.Load(cfg.CommitsFile); err == nil {
		dup := ds.Duplicates()
		fmt.Printf("Corpus: %d rows, %d unique commits, %d duplicated hashes\n",
			dup.TotalRows, dup.UniqueCommits, dup.DuplicatedHashes)
	} else if verbose {
		fmt.Printf("Corpus not loaded: %v\n", err)
	}

	for _, source := range []classify.Source{classify.SourceReference, classify.SourceJudge} {
		counts, err := store.VerdictCounts(ctx, source)
		if err != nil {
			return err
		}
		total := 0
		for _, n := range counts {
			total += n
		}
		fmt.Printf("\n%s (%d verdicts)\n", source, total)
		fmt.Printf("  Pure:    %d\n", counts[classify.VerdictPure])
		fmt.Printf("  Floss:   %d\n", counts[classify.VerdictFloss])
		fmt.Printf("  Unknown: %d\n", counts[classify.VerdictUnknown])
	}

	synthesized, err := store.SynthesizedCount(ctx, classify.SourceJudge)
	if err != nil {
		return err
	}
	failures, err := store.FailureCount(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\nSynthesized judge fields: %d\n", synthesized)
	fmt.Printf("Recorded failures:        %d\n", failures)

	runs, err := store.Runs(ctx, 5)
	if err != nil {
		return err
	}
	if len(runs) > 0 {
		fmt.Println("\nRecent runs:")
		for _, r := range runs {
			status := "finished"
			if r.Interrupted {
				status = "interrupted"
			}
			fmt.Printf("  %s  %s  %s  judged=%d failed=%d skipped=%d\n",
				r.StartedAt.Format("2006-01-02 15:04"), r.Mode, status,
				r.Succeeded, r.Failed, r.Skipped)
		}
	}
	return nil
}
