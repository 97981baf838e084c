package log

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap/zapcore"
)

var globalLogger atomic.Pointer[Logger]

//nolint:gochecknoinits // default logger before the config is loaded.
func init() {
	globalLogger.Store(New(DefaultConfig()))
}

func SetGlobalConfig(cfg Config) {
	globalLogger.Store(New(cfg))
}

func SetGlobalLogger(logger *Logger) {
	globalLogger.Store(logger)
}

func GetGlobalLogger() *Logger {
	return globalLogger.Load()
}

// DebugEnabled reports whether debug entries are written, so callers can skip building
// expensive fields.
func DebugEnabled(_ context.Context) bool {
	return globalLogger.Load().Enabled(zapcore.DebugLevel)
}

func Debug(ctx context.Context, msg string, fields ...Field) {
	globalLogger.Load().log(ctx, zapcore.DebugLevel, msg, fields)
}

func Info(ctx context.Context, msg string, fields ...Field) {
	globalLogger.Load().log(ctx, zapcore.InfoLevel, msg, fields)
}

func Warn(ctx context.Context, msg string, fields ...Field) {
	globalLogger.Load().log(ctx, zapcore.WarnLevel, msg, fields)
}

func Error(ctx context.Context, msg string, fields ...Field) {
	globalLogger.Load().log(ctx, zapcore.ErrorLevel, msg, fields)
}
