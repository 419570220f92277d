package cmd

import (
	"github.com/urfave/cli/v3"
)

var version = "dev"

func App() *cli.Command {
	return &cli.Command{
		Name:    "luxfire",
		Version: version,
		Usage:   "Distributed network rendering and render queue management for LuxRender.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
				Sources: cli.EnvVars("LUXFIRE_CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LUXFIRE_LOGGING_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			dispatcherCmd(),
			rendererCmd(),
			migrateCmd(),
		},
	}
}
