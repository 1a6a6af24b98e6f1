package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cloudnest/internal/server"
	"cloudnest/pkg/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cloudnest: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	serverCfg := cfg.GetSubConfig("server")
	srv := server.New(serverCfg, cfg.GetSubConfig("app"), logger)

	// Bind before serving so a busy port fails the process straight away
	if err := srv.Listen(); err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve()
	}()

	// Wait for interrupt signal (Ctrl+C)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-sigChan:
	}

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverCfg.GetSeconds("shutdownTimeout", 10))
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errChan
}

// newLogger builds the process logger from logging.level and logging.format.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.GetLogLevel(slog.LevelInfo)}
	if strings.EqualFold(cfg.GetString("logging.format"), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
