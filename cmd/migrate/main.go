package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"

	"golang.org/x/crypto/bcrypt"

	"task-tracker/internal/auth"
	"task-tracker/internal/logger"
	"task-tracker/internal/manager"
	"task-tracker/internal/models"
	"task-tracker/internal/storage"
)

// migrate создает схему БД и, при необходимости, первого пользователя.
func main() {
	ctx := context.Background()

	driver := flag.String("db-driver", storage.DriverSQLite, "sqlite или sqlite3")
	dbPath := flag.String("db", "./data/tasks.db", "путь к файлу БД")
	username := flag.String("user", "", "создать пользователя с этим именем")
	password := flag.String("password", os.Getenv("TASKS_SEED_PASSWORD"), "пароль создаваемого пользователя")
	flag.Parse()

	logger.Info(ctx, "🔄 Подготовка базы данных...", "path", *dbPath)

	if *driver == storage.DriverMemory {
		logger.Error(ctx, nil, "❌ Для memory-хранилища миграция не нужна")
		os.Exit(2)
	}

	// Убедимся что папка существует
	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		logger.Error(ctx, err, "❌ Ошибка создания директории")
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStorage(*driver, *dbPath)
	if err != nil {
		logger.Error(ctx, err, "❌ Ошибка миграции")
		os.Exit(1)
	}
	defer store.Close()

	logger.Info(ctx, "✅ Таблицы users и tasks готовы")

	if *username != "" {
		seedUser(ctx, store, *username, *password)
	}

	logger.Info(ctx, "🎉 Миграция завершена успешно!")
}

func seedUser(ctx context.Context, store manager.UserStore, username, password string) {
	hasher, err := auth.NewBcryptHasher(bcrypt.DefaultCost)
	if err != nil {
		logger.Error(ctx, err, "❌ Ошибка инициализации bcrypt")
		return
	}

	// Токены здесь не выпускаются, поэтому issuer не нужен
	um := manager.NewUserManager(store, hasher, nil, 0)
	user, err := um.Register(ctx, models.RegisterRequest{Username: username, Password: password})
	switch {
	case errors.Is(err, models.ErrConflict):
		logger.Warn(ctx, "⚠️ Пользователь уже существует", "username", username)
	case err != nil:
		logger.Error(ctx, err, "❌ Ошибка создания пользователя", "username", username)
	default:
		logger.Info(ctx, "✅ Пользователь создан", "userID", user.ID, "username", user.Username)
	}
}
