package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/njchilds90/gosecant/internal/app"
	"github.com/njchilds90/gosecant/internal/config"
	"github.com/njchilds90/gosecant/internal/logging"
)

func newServeCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := logging.FromConfig(cmd.ErrOrStderr(), cfg)

			application, err := app.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("new app: %w", err)
			}

			serverErrCh := make(chan error, 1)
			go func() {
				serverErrCh <- application.Start()
			}()

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			select {
			case err := <-serverErrCh:
				if err != nil {
					return fmt.Errorf("server exited: %w", err)
				}
				return nil
			case <-sigCtx.Done():
			}

			logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()

			if err := application.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown server: %w", err)
			}
			if err := <-serverErrCh; err != nil {
				return fmt.Errorf("server stopped with error: %w", err)
			}
			return nil
		},
	}
}
