package quill

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// The package logger is a no-op until the host installs one; a library
// should not write to stderr uninvited.
var (
	globalLogger   = zap.NewNop()
	globalLoggerMu sync.RWMutex
)

// SetLogger installs a host logger for engine diagnostics.
func SetLogger(l *zap.Logger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	globalLogger = l
}

func logger() *zap.Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

// NewLogger builds a development-friendly zap logger at the given level,
// for hosts (and the CLI) that do not bring their own.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLogLevel(level))
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func parseLogLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
