package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wiremeet/internal/app"
	"github.com/vovakirdan/wiremeet/internal/config"
	wmlog "github.com/vovakirdan/wiremeet/internal/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling server",
	RunE:  runServe,
}

// loadConfig applies flag overrides on top of file and environment settings.
func loadConfig() (*config.Config, error) {
	bootLog := wmlog.New(flagLogLevel)
	cfg, path, err := config.Load(bootLog, flagConfig)
	if err != nil {
		return nil, err
	}
	cfg.UpdateFrom(config.Config{
		Addr:         flagAddr,
		LogLevel:     flagLogLevel,
		DatabasePath: flagDB,
	})
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := wmlog.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting wiremeet server")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
