package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/config"
	"github.com/mmeshcher/shortlinks/internal/handler"
	"github.com/mmeshcher/shortlinks/internal/remotelog"
	"github.com/mmeshcher/shortlinks/internal/repository"
	"github.com/mmeshcher/shortlinks/internal/service"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		bootLogger, _ := zap.NewDevelopment()
		bootLogger.Fatal("Configuration error", zap.Error(err))
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	sugar.Infow(
		"Configuration loaded",
		"server_address", cfg.ServerAddress,
		"base_url", cfg.BaseURL,
		"file_storage_path", cfg.FileStoragePath,
		"sqlite_path", cfg.SQLitePath,
		"redis_addr", cfg.RedisAddr,
		"database", cfg.DatabaseDSN != "",
		"remote_logging", cfg.AccessToken != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := repository.Open(ctx, repository.Options{
		DatabaseDSN:     cfg.DatabaseDSN,
		SQLitePath:      cfg.SQLitePath,
		RedisAddr:       cfg.RedisAddr,
		RedisPassword:   cfg.RedisPassword,
		RedisDB:         cfg.RedisDB,
		FileStoragePath: cfg.FileStoragePath,
	}, logger)
	if err != nil {
		sugar.Fatalw("Failed to open repository", "error", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close repository", zap.Error(err))
		}
	}()

	remote := remotelog.NewClient(remotelog.Config{
		Endpoint:    cfg.LogEndpoint,
		AccessToken: cfg.AccessToken,
		Stack:       cfg.LogStack,
	}, logger)
	defer remote.Close()

	shortenerService := service.NewShortenerService(repo, cfg.BaseURL, logger,
		service.WithRemoteLogger(remote),
		service.WithDefaultValidity(cfg.DefaultValidity),
	)

	h := handler.NewHandler(shortenerService, logger)

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		sugar.Infow("Server starting", "address", cfg.ServerAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = lvl
	return cfg.Build()
}
