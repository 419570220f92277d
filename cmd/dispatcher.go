package cmd

import (
	"context"
	"fmt"

	"github.com/LuxRender/LuxFire/internal/app"
	"github.com/LuxRender/LuxFire/internal/config"
	"github.com/urfave/cli/v3"
)

func dispatcherCmd() *cli.Command {
	return &cli.Command{
		Name:  "dispatcher",
		Usage: "Run the dispatcher (job queue, scheduler, directory service, HTTP API)",
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
				return fmt.Errorf("database URL is required (set LF_DATABASE_URL env or database.url in config)")
			}

			return app.RunDispatcher(ctx, cfg)
		},
	}
}
