package main

import (
	"database/sql"

	"products-api/internal/config"
	"products-api/internal/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate [up|status]",
		Short: "Manage the database schema",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrationDB(cmd, func(db *sql.DB, log *zap.Logger) error {
				if err := database.RunMigrations(db, log); err != nil {
					return err
				}
				version, err := database.MigrationVersion(db, log)
				if err != nil {
					return err
				}
				log.Info("Schema is up to date", zap.Int64("version", version))
				return nil
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied state of every migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrationDB(cmd, database.GetMigrationStatus)
		},
	})

	return migrateCmd
}

// withMigrationDB opens a single-connection pool and hands fn a database/sql view of it.
func withMigrationDB(cmd *cobra.Command, fn func(db *sql.DB, log *zap.Logger) error) error {
	cfg, log, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	pool, err := database.NewPool(cmd.Context(), migrationConfig(cfg.Database), log)
	if err != nil {
		return err
	}
	defer pool.Close()

	db := database.OpenDB(pool.Pool)
	defer db.Close()

	return fn(db, log)
}

func migrationConfig(cfg config.DatabaseConfig) config.DatabaseConfig {
	cfg.MaxConnections = 1
	return cfg
}
