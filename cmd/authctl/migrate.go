package main

import (
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"schnitzel-auth/internal/config"
	"schnitzel-auth/internal/db"
)

// NewMigrateCmd crea el subcomando migrate.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes en PostgreSQL",
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Parse()
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}

	cmd.Println("Running migrations...")
	if err := db.Migrate(cmd.Context(), cfg.DatabaseURL); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}
