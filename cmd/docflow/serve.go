package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/syntrixbase/docflow/internal/config"
	"github.com/syntrixbase/docflow/internal/logging"
	"github.com/syntrixbase/docflow/internal/services"
)

const initTimeout = 30 * time.Second

func newServeCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a node until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *configDir)
		},
	}
}

func serve(ctx context.Context, configDir string) error {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return err
	}

	out, err := logging.Initialize(cfg.Logging)
	if err != nil {
		return err
	}
	defer out.Close()
	logger := out.Logger

	mgr := services.NewManager(cfg, logger)

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	err = mgr.Init(initCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	startErr := mgr.Start(ctx)
	if startErr == nil {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
		case <-mgr.Done():
			logger.Error("A component stopped, shutting down")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return startErr
}
