package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/redactiq/internal/app"
	"github.com/ternarybob/redactiq/internal/common"
	"github.com/ternarybob/redactiq/internal/server"
)

// NewServeCmd creates the serve command
func NewServeCmd(rt *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  `Starts the RedactIQ HTTP API for uploading, reviewing and redacting documents. Uploaded documents are deleted when their session is closed or expires.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rt)
		},
	}
}

func runServe(rt *rootOptions) error {
	logger := rt.logger
	common.PrintBanner(rt.config, logger)

	application, err := app.New(rt.config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	application.StartBackground()

	srv := server.New(application)
	errChan := make(chan error, 1)
	common.SafeGo(logger, "httpServer", func() {
		errChan <- srv.Start()
	})

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", rt.config.Server.Host, rt.config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		logger.Info().Msg("Interrupt signal received")
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
	return nil
}
