package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	atom = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	mu   sync.RWMutex
	base = build(os.Stderr)
)

func build(w io.Writer) *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.AddSync(w), atom)
	return zap.New(core)
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel разбирает уровень из конфигурации: debug, info, warn, error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("неизвестный уровень логирования %q", s)
}

func SetLevel(l Level) {
	atom.SetLevel(l.zapLevel())
}

// SetOutput перенаправляет вывод (используется в тестах).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = build(w)
}

// L возвращает базовый zap-логгер для мест, где нужен типизированный API.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func Sync() error {
	return L().Sync()
}

func sugar(ctx context.Context) *zap.SugaredLogger {
	l := L()
	if ctx != nil {
		if id := middleware.GetReqID(ctx); id != "" {
			l = l.With(zap.String("request_id", id))
		}
	}
	return l.Sugar()
}

func Debug(ctx context.Context, msg string, kv ...any) {
	sugar(ctx).Debugw(msg, kv...)
}

func Info(ctx context.Context, msg string, kv ...any) {
	sugar(ctx).Infow(msg, kv...)
}

func Warn(ctx context.Context, msg string, kv ...any) {
	sugar(ctx).Warnw(msg, kv...)
}

func Error(ctx context.Context, err error, msg string, kv ...any) {
	if err != nil {
		kv = append(kv, "error", err)
	}
	sugar(ctx).Errorw(msg, kv...)
}
