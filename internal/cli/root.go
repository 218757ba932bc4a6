// Package cli wires the scoutsync commands: the long-running server plus
// the admin operations (provision, reset, refresh) run against the same
// backing stores.
package cli

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/FairportRobotics/scouting-sync/internal/config"
	"github.com/FairportRobotics/scouting-sync/internal/logging"
	_ "github.com/FairportRobotics/scouting-sync/internal/sync/catalog" // Register all record types
)

// NewRootCommand creates the root command for the scoutsync CLI.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "scoutsync",
		Short:         "Scouting record sync service",
		Long:          "Normalizes scouting submissions and syncs them to the raw archive, CSV snapshots, and the document mirror.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewProvisionCommand())
	cmd.AddCommand(NewResetCommand())
	cmd.AddCommand(NewRefreshCommand())

	return cmd
}

// loadConfig reads .env, loads the environment configuration, and
// installs the configured slog handler.
func loadConfig() (*config.Config, error) {
	// Overload overwrites existing env vars with .env values
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}
