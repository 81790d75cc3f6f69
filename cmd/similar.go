package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/refjudge/refjudge/internal/classify"
	"github.com/refjudge/refjudge/internal/config"
	"github.com/refjudge/refjudge/internal/vectordb"
)

var similarCmd = &cobra.Command{
	Use:   "similar <query>",
	Short: "Find stored justifications similar to a query",
	Long: `Embeds the stored verdict justifications into a local vector store and
searches them by similarity. Useful for questions like "which commits
did the judge call floss because of null checks?".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSimilar,
}

func init() {
	similarCmd.Flags().Int("limit", 10, "number of results")
	similarCmd.Flags().String("verdict", "", "only search justifications with this verdict (pure|floss|unknown)")
	similarCmd.Flags().String("source", "", "only search one oracle (reference_tool|llm_judge)")
	similarCmd.Flags().Bool("rebuild", false, "re-embed all justifications instead of loading the persisted index")
	rootCmd.AddCommand(similarCmd)
}

func runSimilar(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	query := strings.Join(args, " ")
	limit, _ := cmd.Flags().GetInt("limit")
	verdictFlag, _ := cmd.Flags().GetString("verdict")
	sourceFlag, _ := cmd.Flags().GetString("source")
	rebuild, _ := cmd.Flags().GetBool("rebuild")

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return err
	}

	vs, err := vectordb.NewChromemStore(embedder, "justifications_"+config.ModelSlug(cfg.Model))
	if err != nil {
		return err
	}

	ctx := context.Background()
	dir := cfg.SimilarityDir()

	if !rebuild {
		if err := vs.Load(ctx, dir); err != nil && verbose {
			fmt.Printf("No persisted index (%v), building from stored verdicts\n", err)
		}
	}
	if rebuild || vs.Count() == 0 {
		if err := buildSimilarityIndex(ctx, cfg, vs, dir); err != nil {
			return err
		}
	}

	var filter *vectordb.Filter
	if verdictFlag != "" || sourceFlag != "" {
		filter = &vectordb.Filter{
			Verdict: classify.Verdict(verdictFlag),
			Source:  classify.Source(sourceFlag),
		}
	}

	results, err := vs.Search(ctx, query, limit, filter)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No matching justifications found.")
		return nil
	}

	for i, r := range results {
		m := r.Document.Metadata
		fmt.Printf("%2d. [%.3f] %s  %s (%s)\n", i+1, r.Similarity, shortHash(m.Hash), m.Verdict, m.Source)
		fmt.Printf("    %s\n", r.Document.Content)
	}
	return nil
}

func buildSimilarityIndex(ctx context.Context, cfg *config.Config, vs vectordb.Store, dir string) error {
	database, store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	var verdicts []classify.Classification
	for _, source := range []classify.Source{classify.SourceReference, classify.SourceJudge} {
		vv, err := store.AllVerdicts(ctx, source)
		if err != nil {
			return err
		}
		verdicts = append(verdicts, vv...)
	}

	docs := vectordb.DocumentsFrom(verdicts)
	if len(docs) == 0 {
		return fmt.Errorf("no justifications to index; run `refjudge analyze` and `refjudge consolidate` first")
	}

	fmt.Printf("Embedding %d justifications...\n", len(docs))
	if err := vs.Add(ctx, docs); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating similarity dir: %w", err)
	}
	if err := vs.Persist(ctx, dir); err != nil {
		return err
	}
	return nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
