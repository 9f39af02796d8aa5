package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/config"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/http/handlers"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(logging.LogLevel(cfg.Logging.Level), cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logConfiguration(logger, cfg)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Error("initialization failed", zap.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	components.run(ctx, cfg, logger)

	router := handlers.NewRouter(handlers.Dependencies{
		Engine:             components.Engine,
		Leaderboard:        components.Leaderboard,
		Broadcaster:        components.Broadcaster,
		Health:             components.Health,
		Metrics:            components.Metrics,
		Logger:             logger,
		MaxConflictRetries: cfg.Submission.MaxConflictRetries,
	})
	printRoutes(logger)

	server := &http.Server{
		Addr:         serverAddr(cfg),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server startup error", zap.Error(err))
	}

	// Give requests 10 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// websocket streams are hijacked and must be closed before Shutdown can return
	components.Broadcaster.Stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", zap.Error(err))
	}
	cancel()
	components.shutdown(logger)
	logger.Info("graceful shutdown complete")
}

func serverAddr(cfg *config.Config) string {
	return fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
}
