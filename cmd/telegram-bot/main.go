package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"task-tracker/internal/config"
	"task-tracker/internal/logger"
	"task-tracker/internal/manager"
	"task-tracker/internal/storage"
)

func main() {
	if err := run(); err != nil {
		logger.Error(context.Background(), err, "Бот остановлен с ошибкой")
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run() error {
	cfg, err := config.Load("telegram-bot", os.Args[1:], os.Getenv)
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.LogLevel)

	if cfg.TelegramToken == "" {
		return errors.New("не задан токен бота: укажите -telegram-token или TELEGRAM_TOKEN")
	}
	if len(cfg.TelegramUsers) == 0 {
		return errors.New("список пользователей пуст: укажите -telegram-users или TELEGRAM_ALLOWED_USERS")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "Запуск Telegram-бота...")

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

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("ошибка создания бота: %w", err)
	}
	api.Debug = cfg.Dev
	logger.Info(ctx, "Авторизован", "bot", api.Self.UserName, "allowedUsers", len(cfg.TelegramUsers))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates, err := api.GetUpdatesChan(u)
	if err != nil {
		return fmt.Errorf("ошибка получения updates: %w", err)
	}

	bot := NewBot(api, manager.NewTaskManager(store), cfg.TelegramUsers)
	bot.Start(ctx, updates)

	logger.Info(context.Background(), "Бот остановлен")
	return nil
}
