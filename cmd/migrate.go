package cmd

import (
	"context"
	"fmt"

	"github.com/LuxRender/LuxFire/internal/config"
	"github.com/LuxRender/LuxFire/internal/database"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations and exit",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection string",
				Sources: cli.EnvVars("LF_DATABASE_URL"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if v := cmd.String("database-url"); v != "" {
				cfg.Database.URL = v
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("database URL is required")
			}

			pool, err := database.Connect(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("database connect: %w", err)
			}
			defer pool.Close()

			if err := database.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}

			log.Info().Msg("migrations complete")
			return nil
		},
	}
}
