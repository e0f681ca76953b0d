package log

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

type logKey struct{}

var defaultLogger *zap.Logger

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defaultLogger = l
}

// Init loads a zap configuration from the JSON file at path and replaces the
// default logger. It must be called by the host application before readers are
// constructed; until then, a production logger is used.
func Init(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("log.Init: %w", err)
	}
	var cfg zap.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("log.Init: %w", err)
	}
	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("log.Init: %w", err)
	}
	defaultLogger = l
	return nil
}

// Logger returns the logger carried by ctx, or the default logger.
func Logger(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(logKey{}).(*zap.Logger); ok {
		return l
	}
	return defaultLogger
}

// With returns a context carrying a logger enriched with the key/value pair.
func With(ctx context.Context, key string, value interface{}) context.Context {
	return WithFields(ctx, zap.Any(key, value))
}

// WithFields returns a context carrying a logger enriched with the fields.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, logKey{}, Logger(ctx).With(fields...))
}

// Fatal logs the message with the default logger and exits.
func Fatal(msg string, fields ...zap.Field) {
	defaultLogger.Fatal(msg, fields...)
}

// Fatalf logs the formatted message with the default logger and exits.
func Fatalf(format string, args ...interface{}) {
	defaultLogger.Sugar().Fatalf(format, args...)
}

// Printf logs the formatted message at Info level with the default logger.
func Printf(format string, args ...interface{}) {
	defaultLogger.Sugar().Infof(format, args...)
}
