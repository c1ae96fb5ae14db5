package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"study_sync/internal/platform/config"
	"study_sync/internal/platform/logging"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "studysync",
	Short: "Sync the LeetCode catalog and accepted submissions into the study database",
	Long: `studysync mirrors the LeetCode problem catalog into Postgres and registers
recently accepted submissions with the study service so they get a review
schedule.

Configuration is read from config.yaml (or CONFIG_PATH), .env and environment
variables, in that order of precedence from lowest to highest.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		cfg = loaded
		logger = logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
		return nil
	},
}

func main() {
	if err := execute(); err != nil {
		os.Exit(1)
	}
}

func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
