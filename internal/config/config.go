// Package config собирает настройки сервиса из флагов и переменных окружения.
// Флаг имеет приоритет над переменной окружения.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"task-tracker/internal/auth"
	"task-tracker/internal/logger"
	"task-tracker/internal/storage"
)

// DevJWTSecret используется только с -dev.
const DevJWTSecret = "dev-only-insecure-secret"

type Config struct {
	Addr       string
	DBDriver   string
	DBPath     string
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
	LogLevel   logger.Level
	Dev        bool

	TelegramToken string
	TelegramUsers []int
}

// Load разбирает args (без имени программы). getenv обычно os.Getenv.
func Load(name string, args []string, getenv func(string) string) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	addr := fs.String("addr", env("TASKS_ADDR", ":8080"), "HTTP listen address")
	driver := fs.String("db-driver", env("TASKS_DB_DRIVER", storage.DriverSQLite), "storage driver: sqlite, sqlite3 or memory")
	dbPath := fs.String("db", env("TASKS_DB_PATH", "./data/tasks.db"), "SQLite database path")
	secret := fs.String("jwt-secret", env("TASKS_JWT_SECRET", ""), "HMAC secret for bearer tokens")
	ttl := fs.String("token-ttl", env("TASKS_TOKEN_TTL", auth.DefaultTokenTTL.String()), "access token lifetime")
	cost := fs.String("bcrypt-cost", env("TASKS_BCRYPT_COST", strconv.Itoa(bcrypt.DefaultCost)), "bcrypt cost")
	level := fs.String("log-level", env("TASKS_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	dev := fs.Bool("dev", env("TASKS_DEV", "") == "true" || env("TASKS_DEV", "") == "1", "development mode")
	tgToken := fs.String("telegram-token", env("TELEGRAM_TOKEN", ""), "Telegram bot token")
	tgUsers := fs.String("telegram-users", env("TELEGRAM_ALLOWED_USERS", ""), "comma-separated Telegram user ids allowed to use the bot")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		Addr:          *addr,
		DBDriver:      *driver,
		DBPath:        *dbPath,
		JWTSecret:     *secret,
		Dev:           *dev,
		TelegramToken: *tgToken,
	}

	var err error
	if cfg.TokenTTL, err = time.ParseDuration(*ttl); err != nil {
		return nil, fmt.Errorf("token-ttl: %w", err)
	}
	if cfg.BcryptCost, err = strconv.Atoi(*cost); err != nil {
		return nil, fmt.Errorf("bcrypt-cost: %w", err)
	}
	if cfg.LogLevel, err = logger.ParseLevel(*level); err != nil {
		return nil, err
	}
	if cfg.TelegramUsers, err = parseIDs(*tgUsers); err != nil {
		return nil, fmt.Errorf("telegram-users: %w", err)
	}

	if cfg.JWTSecret == "" && cfg.Dev {
		cfg.JWTSecret = DevJWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case storage.DriverSQLite, storage.DriverSQLite3, storage.DriverMemory:
	default:
		return fmt.Errorf("неизвестный драйвер хранилища %q", c.DBDriver)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token-ttl должен быть положительным, получено %s", c.TokenTTL)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt-cost должен быть в диапазоне [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

// RequireJWTSecret нужен только HTTP-сервису: бот и миграции токены не выпускают.
func (c *Config) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return errors.New("не задан секрет токенов: укажите -jwt-secret, TASKS_JWT_SECRET или -dev")
	}
	return nil
}

func parseIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("некорректный id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
