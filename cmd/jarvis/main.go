package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/comigor/jarvis-chat/internal/config"
	"github.com/comigor/jarvis-chat/internal/logger"
)

// cfg is loaded once by the root command before any subcommand runs.
var cfg *config.Config

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jarvis",
		Short:         "Chat assistant with multi-conversation history and a completion gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil {
				logger.L.Debug("no .env file loaded", "error", err)
			}
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			cfg = loaded
			logger.SetLevel(cfg.LogLevel)
			return nil
		},
	}

	root.AddCommand(newServeCmd(), newChatCmd(), newListCmd(), newExportCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.L.Error("command failed", "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
