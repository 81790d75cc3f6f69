package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "refjudge",
	Short: "Classify commits as pure or floss refactorings with two oracles",
	Long: `Refjudge runs a commit corpus through two independent oracles: the
heuristic reference tool's raw records and an LLM judge reading the
actual diffs. Verdicts from both are cached in a local database and
compared, so disagreements between the oracles can be studied
commit by commit.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".refjudge.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
