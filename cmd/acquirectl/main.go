// Package main is the operator CLI of the paper acquisition service. It runs
// searches and maintenance against the configured database without going
// through the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/paper-acquisition-service/internal/app"
	"github.com/helixir/paper-acquisition-service/internal/config"
	"github.com/helixir/paper-acquisition-service/internal/observability"
)

var (
	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "acquirectl",
	Short: "Operate the paper acquisition service",
	Long: `acquirectl runs searches, inspects source health and triggers
maintenance (health event purging and priority recomputation) directly
against the service database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded

		level, _ := cmd.Flags().GetString("log-level")
		logger = observability.NewLogger(observability.LoggingConfig{
			Level:  level,
			Format: "console",
			Output: "stderr",
		}).With().Str("component", "acquirectl").Logger()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./config.yaml, ./config/config.yaml or /etc/paper-acquisition/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level")
	rootCmd.PersistentFlags().Bool("json", false, "print results as JSON")
}

// withCore runs fn with the wired acquisition core and a context cancelled
// on SIGINT or SIGTERM.
func withCore(cmd *cobra.Command, fn func(ctx context.Context, core *app.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := app.New(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer core.Close()
	return fn(ctx, core)
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
