package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	mongostore "github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage/mongo"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/app/storage/sqlstore"
	"github.com/EdouardGE/tp3-a25-api-books-Edouard-Germain/internal/config"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations (or ensure Mongo indexes)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				if cfg.Database.Driver == config.DriverMongo {
					return ensureMongoIndexes(cmd, cfg)
				}
				return withSQL(cmd, cfg, func(db *sqlx.DB) error {
					if err := sqlstore.Migrate(db); err != nil {
						return err
					}
					printer(cmd).Success("migrations applied")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				return withSQL(cmd, cfg, func(db *sqlx.DB) error {
					if err := sqlstore.MigrateDown(db); err != nil {
						return err
					}
					printer(cmd).Success("migrations rolled back")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				return withSQL(cmd, cfg, func(db *sqlx.DB) error {
					version, dirty, err := sqlstore.MigrationVersion(db)
					if err != nil {
						return err
					}
					p := printer(cmd)
					if dirty {
						p.Warning("schema version %d (dirty)", version)
						return nil
					}
					p.Info("schema version %d", version)
					return nil
				})
			},
		},
	)
	return cmd
}

func withSQL(cmd *cobra.Command, cfg *config.Config, fn func(db *sqlx.DB) error) error {
	switch cfg.Database.Driver {
	case config.DriverPostgres, config.DriverSQLite:
	default:
		return fmt.Errorf("driver %q has no SQL schema", cfg.Database.Driver)
	}
	db, err := sqlstore.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.DSN, sqlstore.PoolConfig{MaxOpenConns: 1})
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func ensureMongoIndexes(cmd *cobra.Command, cfg *config.Config) error {
	client, err := mongostore.Connect(cmd.Context(), cfg.Mongo.URI)
	if err != nil {
		return err
	}
	defer func() { _ = client.Disconnect(cmd.Context()) }()
	if err := mongostore.New(client.Database(cfg.Mongo.Database)).EnsureIndexes(cmd.Context()); err != nil {
		return err
	}
	printer(cmd).Success("mongo indexes ensured on %s", cfg.Mongo.Database)
	return nil
}
