package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(New(os.Getenv("ENVIRONMENT"), os.Getenv("LOG_LEVEL")))
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// builds a logger for the given environment. production writes JSON to
// stdout at info; everything else writes text to stderr at debug. level, when
// recognised, overrides the default level.
func New(environment, level string) *slog.Logger {
	if environment == "production" {
		opts := &slog.HandlerOptions{Level: parseLevel(level, slog.LevelInfo)}
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}

	opts := &slog.HandlerOptions{Level: parseLevel(level, slog.LevelDebug)}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(level string, fallback slog.Level) slog.Level {
	if l, ok := levels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return l
	}
	return fallback
}

// Default returns the process-wide logger
func Default() *slog.Logger {
	return current.Load()
}

// SetDefault swaps the process-wide logger and hands back the old one
func SetDefault(l *slog.Logger) *slog.Logger {
	return current.Swap(l)
}

func With(args ...any) *slog.Logger {
	return Default().With(args...)
}

type ctxKey struct{}

// returns the request-scoped logger stored by the middleware, or the default
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return Default()
}

func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any) { Default().Info(msg, args...) }
func Warn(msg string, args ...any) { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }

// logs msg at error level with err attached
func ErrorErr(err error, msg string, args ...any) {
	Default().Error(msg, append(args, "error", err)...)
}

// logs and exits; only for commands and scripts
func Fatal(msg string, args ...any) {
	Default().Error(msg, args...)
	os.Exit(1)
}
