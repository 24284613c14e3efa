// Package logging provides structured logging for the crypto tracker,
// backed by zap. Loggers travel through context so collectors and
// repositories inherit the cycle and address fields of their caller.
package logging

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var globalLogger *zap.SugaredLogger

// Init initializes the global logger. Level is one of debug, info,
// warn, error; format is "json" or "console".
func Init(level, format string) error {
	zapConfig := zap.NewProductionConfig()
	if format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	}

	var parsed zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		parsed = zapcore.DebugLevel
	case "warn":
		parsed = zapcore.WarnLevel
	case "error":
		parsed = zapcore.ErrorLevel
	default:
		parsed = zapcore.InfoLevel
	}
	zapConfig.Level = zap.NewAtomicLevelAt(parsed)

	base, err := zapConfig.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	globalLogger = base.Sugar()
	return nil
}

// L returns the global logger, initializing a default one if Init was
// never called (tests, one-shot CLIs).
func L() *zap.SugaredLogger {
	if globalLogger == nil {
		base, _ := zap.NewProduction(zap.AddCallerSkip(1))
		globalLogger = base.Sugar()
	}
	return globalLogger
}

// Sync flushes buffered log entries.
func Sync() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}

type loggerKey struct{}

// WithLogger returns a context carrying the given logger.
func WithLogger(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithFields returns a context whose logger carries the extra
// key/value pairs.
func WithFields(ctx context.Context, keysAndValues ...interface{}) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(keysAndValues...))
}

// FromContext retrieves the logger from the context, falling back to
// the global logger.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.SugaredLogger); ok {
		return logger
	}
	return L()
}
