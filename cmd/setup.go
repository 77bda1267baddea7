package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/massctl/internal/repositories"
	"github.com/desertthunder/massctl/internal/shared"
	"github.com/urfave/cli/v3"
)

// loadOrCreateConfig reads configPath, creating it from the template when it does not exist.
func (r *Runner) loadOrCreateConfig(configPath string) *shared.Config {
	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
		return config
	}

	r.logger.Info("config file not found, creating from template", "path", configPath)
	if err := shared.CreateConfigFile(configPath); err != nil {
		r.logger.Warn("failed to create config file, using defaults", "error", err)
		return shared.DefaultConfig()
	}

	r.logger.Info("config file created", "path", configPath)
	config, err := shared.LoadConfig(configPath)
	if err != nil {
		r.logger.Warn("failed to load created config, using defaults", "error", err)
		return shared.DefaultConfig()
	}
	return config
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.loadOrCreateConfig(cmd.String("config"))

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return r.writePlain("✓ Database ready: %s\n", config.Database.Path)
}

// SetupRollback reverts the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	config := r.loadOrCreateConfig(cmd.String("config"))

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(ctx, db); err != nil {
		return err
	}
	r.logger.Info("rolled back latest migration", "path", config.Database.Path)
	return r.writePlain("✓ Rolled back latest migration\n")
}

// SetupSecrets generates the key file that encrypts stored credentials.
//
// An existing key is left in place.
func (r *Runner) SetupSecrets(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if path == "" {
		path = r.config.Secrets.KeyPath
	}

	if _, err := repositories.LoadEncryptor(path); err == nil {
		r.logger.Info("secret key already exists", "path", path)
		return r.writePlain("✓ Secret key already present: %s\n", path)
	}

	if err := repositories.GenerateKeyFile(path); err != nil {
		return fmt.Errorf("failed to generate secret key: %w", err)
	}

	r.logger.Info("secret key generated", "path", path)
	r.writePlain("✓ Secret key written to: %s\n", shared.ExpandHome(path))
	r.writePlainln("Credentials saved from now on are encrypted. Run 'massctl auth login' to store them.")
	return nil
}
