package log

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	logger *zap.Logger
	level  zap.AtomicLevel

	mu    sync.RWMutex
	hooks []Hook
}

func New(cfg Config) *Logger {
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Encoding == EncodingConsole {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, writeSyncer(cfg), level)

	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(2)}
	if cfg.Debug {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}

	zl := zap.New(core, opts...)
	if cfg.Name != "" {
		zl = zl.Named(cfg.Name)
	}

	return &Logger{
		logger: zl,
		level:  level,
		hooks:  []Hook{HookFunc(contextFields)},
	}
}

func writeSyncer(cfg Config) zapcore.WriteSyncer {
	if cfg.Output == OutputFile && cfg.File.Path != "" {
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSize,
			MaxAge:     cfg.File.MaxAge,
			MaxBackups: cfg.File.MaxBackups,
			LocalTime:  cfg.File.LocalTime,
			Compress:   cfg.File.Compress,
		})
	}

	return zapcore.Lock(os.Stdout)
}

func parseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}

	return lvl
}

func (l *Logger) AddHook(hook Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.hooks = append(l.hooks, hook)
}

func (l *Logger) SetLevel(level string) {
	l.level.SetLevel(parseLevel(level))
}

func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.level.Enabled(level)
}

// Zap exposes the underlying zap logger for libraries that need one.
func (l *Logger) Zap() *zap.Logger {
	return l.logger
}

// AsSlog adapts the logger for libraries that take a *slog.Logger. Hooks are not applied.
func (l *Logger) AsSlog() *slog.Logger {
	return slog.New(zapslog.NewHandler(l.logger.Core(), zapslog.WithName(l.logger.Name())))
}

func (l *Logger) Sync() error {
	return l.logger.Sync()
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

func (l *Logger) log(ctx context.Context, level zapcore.Level, msg string, fields []Field) {
	if !l.level.Enabled(level) {
		return
	}

	l.mu.RLock()
	for _, hook := range l.hooks {
		fields = hook.Apply(ctx, msg, fields...)
	}
	l.mu.RUnlock()

	if ce := l.logger.Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}
