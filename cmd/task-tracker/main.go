package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	server "task-tracker"
	"task-tracker/internal/auth"
	"task-tracker/internal/config"
	"task-tracker/internal/logger"
	"task-tracker/internal/manager"
	"task-tracker/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		logger.Error(context.Background(), err, "Сервис остановлен с ошибкой")
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run() error {
	cfg, err := config.Load("task-tracker", os.Args[1:], os.Getenv)
	if err != nil {
		return err
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		return err
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DBDriver != storage.DriverMemory {
		// Создаем директорию для БД если её нет
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return err
		}
	}
	store, err := storage.Open(cfg.DBDriver, cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	hasher, err := auth.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenIssuer([]byte(cfg.JWTSecret))
	if err != nil {
		return err
	}

	um := manager.NewUserManager(store, hasher, tokens, cfg.TokenTTL)
	tm := manager.NewTaskManager(store)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.NewRouter(tm, um, store),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "HTTP сервер запущен", "addr", cfg.Addr, "driver", cfg.DBDriver, "dev", cfg.Dev)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "Останавливаем HTTP сервер...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
