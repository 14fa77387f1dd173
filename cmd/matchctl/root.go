// cmd/matchctl/root.go
package main

import (
	"caregiver-matching/internal/common/config"
	"caregiver-matching/internal/common/database"
	"caregiver-matching/internal/common/logger"

	"github.com/spf13/cobra"
)

const appName = "matchctl"

var (
	cfgFile string
	debug   bool

	rootCmd = &cobra.Command{
		Use:          appName,
		Short:        "matchctl runs the ranking model retrain and manages the model registry",
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose/debug output")
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	return config.Load()
}

func newLogger(cfg *config.Config) logger.Logger {
	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	return logger.NewStructured(level, "console", "stderr")
}

func openPostgres(cfg *config.Config) (*database.PostgresClient, error) {
	return database.NewPostgres(cfg.Database.Postgres)
}
