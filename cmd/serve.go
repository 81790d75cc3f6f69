package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/refjudge/refjudge/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the results server with the live dashboard",
	Long: `Serves the stored verdicts, failures, and agreement statistics over a
read-only HTTP API with a small dashboard. Generated agreement reports
are rendered as HTML under /reports.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}

	database, store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	srv := server.New(server.Config{
		Port:       cfg.Server.Port,
		ReportsDir: cfg.ReportsDir(),
		AllowAll:   cfg.Server.AllowAllOrigins,
	}, store)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	fmt.Printf("Results server listening on http://localhost:%d\n", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Shutdown: %v\n", err)
	}
	return nil
}
