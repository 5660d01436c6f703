package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/glossgame/internal/config"
	"github.com/ashureev/glossgame/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "glossgame",
	Short:         "Glossary true/false mini-game server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "Path to a .env file loaded before reading the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(contentCmd)
}

// loadConfig loads the .env file, reads the configuration and installs the
// JSON logger at the configured level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	envErr := godotenv.Load(envFile)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if envErr != nil {
		slog.Info("No .env file found, using environment variables")
	}
	return cfg, nil
}

// openRepository opens the store selected by DB_DRIVER.
func openRepository(cfg *config.Config) (store.Repository, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		return store.NewSQLite(cfg.DBPath)
	case config.DriverPostgres:
		return store.NewPostgres(cfg.DatabaseURL)
	case config.DriverMemory:
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DBDriver)
	}
}
