package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/comigor/jarvis-chat/internal/gateway"
	"github.com/comigor/jarvis-chat/internal/llm"
	"github.com/comigor/jarvis-chat/internal/logger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the completion gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.LLM.CheckCredentials(); err != nil {
				logger.L.Warn("chat requests will fail until an API key is configured", "error", err)
			}

			var models []gateway.Model
			if cfg.Gateway.ModelsFile != "" {
				loaded, err := gateway.LoadCatalog(cfg.Gateway.ModelsFile)
				if err != nil {
					logger.L.Warn("model catalog unavailable", "error", err)
				} else {
					models = loaded
				}
			}

			srv := &http.Server{
				Addr:              cfg.Gateway.Addr(),
				Handler:           gateway.New(cfg, llm.NewClient(cfg.LLM), models).Routes(),
				ReadHeaderTimeout: 5 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			logger.L.Info("starting gateway", "address", srv.Addr, "model", cfg.LLM.Model, "origins", cfg.Gateway.AllowedOrigins)
			return runServer(cmd.Context(), srv)
		},
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.L.Info("shutting down gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
