package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/qb-bastiaan/invoice-processor-app/internal/common"
	"github.com/qb-bastiaan/invoice-processor-app/internal/gemini"
	"github.com/qb-bastiaan/invoice-processor-app/internal/history"
	"github.com/qb-bastiaan/invoice-processor-app/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model, err := gemini.NewClient(ctx, cfg.Gemini, logger)
	if err != nil {
		logger.Error("gemini client init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := model.Close(); err != nil {
			logger.Warn("gemini client close failed", "error", err)
		}
	}()

	var hist *history.Store
	if cfg.Server.HistoryDBPath != "" {
		hist, err = history.Open(cfg.Server.HistoryDBPath, logger)
		if err != nil {
			logger.Error("history store init failed", "error", err)
			os.Exit(1)
		}
		defer hist.Close()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(logger, cfg, model, hist).Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No write timeout: one SSE stream spans three model calls.
	}

	go func() {
		logger.Info("server started", "addr", cfg.Server.Addr, "input_dir", cfg.Files.InputDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		_ = srv.Close()
	}
	logger.Info("server stopped")
}
