package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/scsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the default configuration template to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", r.configPath)

	r.writePlain("%s Config written to %s\n", r.styles.OK("✓"), r.configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.soundcloud.client_id and client_secret\n")
	r.writePlain("2. Run 'scsync auth connect' to authorize your account\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.openDatabase()
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("%s Database ready at %s\n", r.styles.OK("✓"), r.config.Database.Path)
}
