package main

import (
	"fmt"

	"github.com/mbeoliero/devcircle/internal/config"
	"github.com/mbeoliero/devcircle/internal/repository"
	"github.com/mbeoliero/kit/log"
	"github.com/spf13/cobra"
)

// migrateCmd creates or updates the store schema and exits
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		cfg.Database.AutoMigrate = false
		repos, err := repository.NewRepositories(cfg)
		if err != nil {
			return fmt.Errorf("init repositories: %w", err)
		}
		defer repos.Close()

		if err := repos.AutoMigrate(); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		log.CtxInfo(cmd.Context(), "schema migrated: driver=%s", cfg.Database.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
