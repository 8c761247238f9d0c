package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loykin/curator"
)

// createServeCommand creates the serve subcommand
func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the HTTP server",
		Long: `Start the curator HTTP server. Without a config file the built-in
defaults are used: an in-memory store, the Book and Employee kinds and
authentication enabled with no users.

Examples:
  curator serve                     # defaults, or --config
  curator serve config.toml         # start with a specific config file`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := globalFlags.ConfigPath
			if len(args) > 0 {
				configPath = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := curator.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	app, err := curator.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	app.Logger().Info("starting curator", "listen", cfg.Server.Listen, "base_path", cfg.Server.BasePath, "engine", cfg.Server.Engine)
	return app.Run(ctx)
}
