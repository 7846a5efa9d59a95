package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/RichardoC/blinky/internal/api"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}

			handler := api.NewHandler(a.engine, a.database, a.cache,
				api.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
				a.metrics, logger)
			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("Starting server", zap.String("addr", cfg.Addr), zap.String("mode", cfg.Mode))
				serveErr <- srv.ListenAndServe()
			}()

			var runErr error
			select {
			case err := <-serveErr:
				if !errors.Is(err, http.ErrServerClosed) {
					runErr = err
				}
			case <-ctx.Done():
				logger.Info("Shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return multierr.Combine(runErr, srv.Shutdown(shutdownCtx), a.Close())
		},
	}
}
