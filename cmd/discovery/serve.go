package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ceyewan/discovery/internal/bootstrap"
)

func serveCmd() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the discovery server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, configDir)
		},
	}

	cmd.Flags().StringVarP(&configDir, "config", "c", "", "Directory containing config.yaml (default: . and ./config)")
	return cmd
}

func serve(ctx context.Context, configDir string) error {
	cfg, loader, err := bootstrap.Load(ctx, configDir)
	if err != nil {
		return err
	}
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return err
	}
	if err := app.WatchLogLevel(ctx, loader); err != nil {
		_ = app.Close(context.Background())
		return err
	}
	return app.Run(ctx)
}
