package cmd

import (
	"github.com/spf13/cobra"

	"github.com/refjudge/refjudge/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize refjudge configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to pick the judge provider and datasets, and generates a .refjudge.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
