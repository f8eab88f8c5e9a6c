package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ggza/trivia-core/internal/config"
	"github.com/ggza/trivia-core/pkg/database"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrationDB(*configPath, func(cfg *config.Config, run migrationRunner) error {
				if err := run.up(); err != nil {
					return err
				}
				cmd.Println("migrations applied")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Force the schema version and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return withMigrationDB(*configPath, func(cfg *config.Config, run migrationRunner) error {
				if err := run.force(version); err != nil {
					return err
				}
				cmd.Printf("schema version forced to %d\n", version)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrationDB(*configPath, func(cfg *config.Config, run migrationRunner) error {
				version, dirty, err := run.version()
				if err != nil {
					return err
				}
				cmd.Printf("version=%d dirty=%t\n", version, dirty)
				return nil
			})
		},
	})

	return cmd
}

// migrationRunner привязывает операции golang-migrate к одному соединению
type migrationRunner struct {
	up      func() error
	force   func(version int) error
	version func() (uint, bool, error)
}

func withMigrationDB(configPath string, fn func(cfg *config.Config, run migrationRunner) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	sqlDB, err := database.OpenSQL(cfg.Database.PostgresURL())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	path := cfg.Database.MigrationsPath
	return fn(cfg, migrationRunner{
		up:      func() error { return database.MigrateUp(sqlDB, path) },
		force:   func(version int) error { return database.MigrateForce(sqlDB, path, version) },
		version: func() (uint, bool, error) { return database.MigrateVersion(sqlDB, path) },
	})
}
