package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/config"
	"github.com/GriffinCanCode/StreamSniffer/internal/infrastructure/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override env
	flag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "Server port")
	flag.StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "Listen host")
	flag.StringVar(&cfg.Server.PlayerHTML, "player", cfg.Server.PlayerHTML, "Player page served at /")
	flag.StringVar(&cfg.Browser.Bin, "browser", cfg.Browser.Bin, "Chromium executable (default: auto-detect)")
	flag.IntVar(&cfg.Browser.MaxSessions, "max-sessions", cfg.Browser.MaxSessions, "Concurrent browser sessions")
	flag.StringVar(&cfg.Browser.TriggersFile, "triggers", cfg.Browser.TriggersFile, "YAML file with extra play-control selectors")
	flag.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	flag.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "Development mode (colored logs, debug level)")
	noBrowser := flag.Bool("no-browser", !cfg.Browser.Enabled, "Disable the browser engine")
	flag.Parse()
	cfg.Browser.Enabled = !*noBrowser

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	logger := srv.Logger()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Shutting down gracefully", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Close(ctx); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}
	case err := <-errChan:
		_ = srv.Close(context.Background())
		if err != nil {
			logger.Fatal("Server error", zap.Error(err))
		}
	}
}
