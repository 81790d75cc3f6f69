package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/refjudge/refjudge/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing the stored verdicts and agreement statistics as tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		// Stdout carries the MCP protocol; everything else goes to stderr.
		mcpserver.Version = Version
		fmt.Fprintf(os.Stderr, "refjudge MCP server started on stdio (db=%s, model=%s)\n",
			cfg.DatabasePath(), cfg.Model)

		return mcpserver.NewServer(store).Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
