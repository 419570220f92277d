package cmd

import (
	"context"
	"fmt"

	"github.com/LuxRender/LuxFire/internal/config"
	"github.com/LuxRender/LuxFire/internal/renderer"
	"github.com/urfave/cli/v3"
)

func rendererCmd() *cli.Command {
	return &cli.Command{
		Name:  "renderer",
		Usage: "Run a render worker (registers with the directory, serves the render RPC surface)",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if cfg.Directory.URL == "" {
				return fmt.Errorf("directory URL is required (set LF_DIRECTORY_URL env or directory.url in config)")
			}

			return renderer.Run(ctx, cfg)
		},
	}
}
