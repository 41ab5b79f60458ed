package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/paperpulse/paperpulse/internal/config"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration and create the database",
	Long: `Write a default configuration file and create the database schema.

An existing configuration file is left untouched.

Example:
  paperpulse init
  paperpulse init --config /etc/paperpulse/paperpulse.yaml`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil {
		exitWithError(ExitConfigError, "config already exists: %s", configPath)
	}

	cfg := config.Default()
	if err := cfg.Save(configPath); err != nil {
		exitWithError(ExitError, "writing config: %v", err)
	}

	// Opening the database creates the schema.
	db := mustOpenDatabase(cfg)
	defer db.Close()

	if humanOutput {
		outputHuman("Initialized %s (database: %s)\n", configPath, cfg.DBPath)
	} else {
		outputJSON(StatusResponse{Status: "initialized", Path: configPath})
	}
	return nil
}
