package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/refjudge/refjudge/internal/batch"
	"github.com/refjudge/refjudge/internal/classify"
	"github.com/refjudge/refjudge/internal/corpus"
	"github.com/refjudge/refjudge/internal/gitio"
	"github.com/refjudge/refjudge/internal/judge"
	"github.com/refjudge/refjudge/internal/progress"
	"github.com/refjudge/refjudge/internal/reference"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the commit corpus through the LLM judge",
	Long: `Loads the commit dataset, extracts each commit's diff from a local
clone, and asks the configured LLM judge whether the change is a pure
refactoring. Verdicts are cached in the local database; by default an
interrupted or repeated run resumes at the first unjudged commit.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().Int("limit", 0, "judge at most N commits (0 = all)")
	analyzeCmd.Flags().Bool("random", false, "pick the selection at random instead of in file order")
	analyzeCmd.Flags().Int64("seed", 0, "random seed for --random (0 = time-based)")
	analyzeCmd.Flags().StringSlice("projects", nil, "only judge commits of matching projects (glob patterns)")
	analyzeCmd.Flags().String("purity-filter", "", "only judge commits whose raw reference flag is TRUE, FALSE, or NONE")
	analyzeCmd.Flags().Bool("restart", false, "discard this model's previous verdicts and judge everything again")
	analyzeCmd.Flags().Bool("dry-run", false, "walk the selection and estimate cost without calling the judge")
	analyzeCmd.Flags().Bool("yes", false, "skip the restart confirmation prompt")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	start := time.Now()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	random, _ := cmd.Flags().GetBool("random")
	seed, _ := cmd.Flags().GetInt64("seed")
	projects, _ := cmd.Flags().GetStringSlice("projects")
	purityFilter, _ := cmd.Flags().GetString("purity-filter")
	restart, _ := cmd.Flags().GetBool("restart")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	assumeYes, _ := cmd.Flags().GetBool("yes")

	if len(projects) == 0 {
		projects = cfg.Projects
	}

	ds, err := corpus.Load(cfg.CommitsFile)
	if err != nil {
		return err
	}
	total := len(ds.Commits)

	// Selection narrows in a fixed order: project globs, reference purity
	// flag, per-project cap, then first-N or random-N.
	if len(projects) > 0 {
		if ds, err = ds.MatchProjects(projects); err != nil {
			return err
		}
	}
	if purityFilter != "" {
		keep, err := purityHashes(cfg.ReferenceFile, purityFilter)
		if err != nil {
			return err
		}
		ds = ds.KeepHashes(keep)
	}
	if cfg.PerProjectLimit > 0 {
		ds = ds.Filter(cfg.PerProjectLimit)
	}
	if random {
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		ds = ds.Shuffle(rand.New(rand.NewSource(seed)))
	}
	if limit > 0 {
		ds = &corpus.Dataset{Commits: ds.First(limit)}
	}

	fmt.Printf("Selected %d of %d commits (model %s)\n", len(ds.Commits), total, cfg.Model)
	if len(ds.Commits) == 0 {
		return nil
	}

	mode := classify.ModeResume
	if restart {
		if !assumeYes && !dryRun {
			confirm := promptui.Prompt{
				Label:     fmt.Sprintf("Discard all stored %s verdicts and start over", cfg.Model),
				IsConfirm: true,
			}
			if _, err := confirm.Run(); err != nil {
				fmt.Println("Aborted.")
				return nil
			}
		}
		mode = classify.ModeRestart
	}

	if dryRun {
		return printEstimate(cfg.Model, ds)
	}

	database, store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	provider, err := createJudgeFromConfig(cfg)
	if err != nil {
		return err
	}

	git, err := gitio.NewClient(cfg.ReposDir())
	if err != nil {
		return err
	}

	opts := batch.DefaultOptions()
	opts.Mode = mode
	opts.BatchSize = cfg.Batch.Size
	opts.CommitPause = time.Duration(cfg.Batch.CommitPauseSeconds) * time.Second
	opts.BatchPause = time.Duration(cfg.Batch.PauseSeconds) * time.Second
	opts.Temperature = cfg.Temperature
	opts.MaxTokens = cfg.MaxTokens

	pipeline := batch.New(store, provider, git, cfg.DiffsDir(), opts)
	pipeline.SetReporter(progress.NewReporter())

	// Ctrl-C cancels the in-flight commit; everything already judged stays
	// persisted and the next resume run continues from there.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.Run(ctx, *ds)
	if err != nil {
		return err
	}

	fmt.Printf("\nRun %s finished in %s\n", res.RunID, time.Since(start).Round(time.Second))
	fmt.Printf("  Judged:       %d\n", res.Succeeded)
	fmt.Printf("  Failed:       %d\n", res.Failed)
	fmt.Printf("  Skipped:      %d\n", res.Skipped)
	fmt.Printf("  Synthesized:  %d\n", res.Synthesized)
	if res.Interrupted {
		fmt.Println("  Interrupted; run `refjudge analyze` again to resume.")
	}
	return nil
}

// purityHashes returns the commit hashes whose consolidated reference verdict
// matches filter: TRUE selects pure commits, FALSE floss, NONE the commits the
// consolidator leaves unknown.
func purityHashes(referenceFile, filter string) (map[string]struct{}, error) {
	var want classify.Verdict
	switch strings.ToUpper(strings.TrimSpace(filter)) {
	case "TRUE":
		want = classify.VerdictPure
	case "FALSE":
		want = classify.VerdictFloss
	case "NONE":
		want = classify.VerdictUnknown
	default:
		return nil, fmt.Errorf("invalid --purity-filter %q: want TRUE, FALSE, or NONE", filter)
	}
	if referenceFile == "" {
		return nil, fmt.Errorf("--purity-filter needs reference_file in the config")
	}

	records, err := reference.LoadCSV(referenceFile)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]struct{})
	for hash, v := range reference.Consolidate(records) {
		if v.Verdict == want {
			keep[hash] = struct{}{}
		}
	}
	return keep, nil
}

// printEstimate prints a rough cost projection for judging the selection.
// Diff sizes are unknown before cloning, so a mid-sized diff stands in for
// every commit; local Ollama models always cost zero.
func printEstimate(model string, ds *corpus.Dataset) error {
	const assumedDiffBytes = 12_000
	const assumedReplyTokens = 400

	perCommitInput := judge.EstimateTokens(strings.Repeat("x", assumedDiffBytes)) + 500
	n := len(ds.Commits)
	cost := judge.EstimateCost(model, n*perCommitInput, n*assumedReplyTokens)

	fmt.Println("Dry run: no git, judge, or database access.")
	fmt.Printf("  Commits:            %d\n", n)
	fmt.Printf("  Est. input tokens:  %d\n", n*perCommitInput)
	fmt.Printf("  Est. output tokens: %d\n", n*assumedReplyTokens)
	fmt.Printf("  Est. cost:          $%.2f\n", cost)
	if _, err := os.Stat(".refjudge"); err == nil {
		fmt.Println("  Already-judged commits will be skipped on the real run.")
	}
	return nil
}
