package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/pngx/internal/repositories"
	"github.com/desertthunder/pngx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the embedded template when it does
// not exist, then opens the database and applies pending migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.pathToConfig(cmd)

	if _, err := os.Stat(configPath); err != nil && !r.fixed {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load created config: %w", err)
		}
		r.config = config
		r.writePlain("✓ Created %s\n", configPath)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	status, err := shared.Status(db)
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready at %s (schema version %d)\n", r.config.Database.Path, status.Current)
	return nil
}

// SetupStatus reports the schema version and the number of indexed images without migrating.
func (r *Runner) SetupStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := shared.Status(db)
	if err != nil {
		return err
	}

	images := 0
	if len(status.Pending) == 0 {
		if images, err = repositories.NewImageRepository(db).Count(); err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(struct {
			Database string `json:"database"`
			Version  int    `json:"version"`
			Pending  []int  `json:"pending"`
			Images   int    `json:"images"`
		}{r.config.Database.Path, status.Current, status.Pending, images}, true)
	}

	r.writePlain("Database: %s\n", r.config.Database.Path)
	r.writePlain("Version:  %d\n", status.Current)
	if len(status.Pending) > 0 {
		r.writePlain("Pending:  %v\n", status.Pending)
		r.writeStatus("%s\n", r.palette.Warn("Run 'pngx setup' to apply pending migrations"))
		return nil
	}
	r.writePlain("Images:   %d\n", images)
	return nil
}

// SetupRollback rolls back the latest applied migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}

	status, err := shared.Status(db)
	if err != nil {
		return err
	}
	r.logger.Info("rolled back migration", "version", status.Current)
	r.writePlain("✓ Rolled back to schema version %d\n", status.Current)
	return nil
}
